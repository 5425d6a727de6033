package network

import (
	"fmt"
	"strings"

	"xdao.co/keyaudit/keys"
)

// Environment names an XMTP deployment.
type Environment string

const (
	EnvDev        Environment = "dev"
	EnvProduction Environment = "production"
	EnvLocal      Environment = "local"
)

// Endpoint is a dialable MessageApi address.
type Endpoint struct {
	Env      Environment
	Address  string
	Insecure bool
}

var endpoints = map[Environment]Endpoint{
	EnvDev:        {Env: EnvDev, Address: "grpc.dev.xmtp.network:443"},
	EnvProduction: {Env: EnvProduction, Address: "grpc.production.xmtp.network:443"},
	EnvLocal:      {Env: EnvLocal, Address: "localhost:5556", Insecure: true},
}

// ParseEnvironment accepts dev, production (or prod) and local.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "":
		return EnvDev, nil
	case "production", "prod":
		return EnvProduction, nil
	case "local":
		return EnvLocal, nil
	default:
		return "", fmt.Errorf("unknown environment %q (expected dev|production|local)", s)
	}
}

// ResolveEndpoint returns the endpoint for env. A non-empty override replaces
// the address; "http://" selects plaintext and "https://" selects TLS.
// A bare host:port keeps the environment's transport.
func ResolveEndpoint(env Environment, override string) (Endpoint, error) {
	ep, ok := endpoints[env]
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown environment %q", env)
	}
	override = strings.TrimSpace(override)
	if override == "" {
		return ep, nil
	}
	switch {
	case strings.HasPrefix(override, "http://"):
		ep.Address = strings.TrimPrefix(override, "http://")
		ep.Insecure = true
	case strings.HasPrefix(override, "https://"):
		ep.Address = strings.TrimPrefix(override, "https://")
		ep.Insecure = false
	default:
		ep.Address = override
	}
	ep.Address = strings.TrimSuffix(ep.Address, "/")
	if ep.Address == "" {
		return Endpoint{}, fmt.Errorf("empty API address in %q", override)
	}
	return ep, nil
}

// ContactTopic is where addr publishes its contact bundles.
func ContactTopic(addr keys.Address) string {
	return "/xmtp/0/contact-" + addr.Hex() + "/proto"
}

// PrivateStoreTopic is where addr stores its encrypted private key bundle.
func PrivateStoreTopic(addr keys.Address) string {
	return "/xmtp/0/privatestore-" + addr.Hex() + "/key_bundle/proto"
}

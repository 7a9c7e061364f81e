// Package config defines the gateway's YAML configuration surface.
//
// Configuration is loaded in a fixed sequence: parse the YAML file, apply
// defaults to unset fields, apply environment overrides, then validate.
// Environment variables use the GATEWAY_<SECTION>_<FIELD> convention
// (GATEWAY_SERVER_LISTEN_ADDRESS, GATEWAY_ANTHROPIC_MAX_RETRIES, ...) and
// always win over file values. ANTHROPIC_API_KEY is honored directly as the
// provider credential so the gateway works with the same environment the
// official SDKs use.
//
// All consumers receive configuration by injection; there is no process-wide
// configuration singleton.
package config

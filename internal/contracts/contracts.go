// Package contracts bundles the OpenAPI documents describing the advisory
// backends, plus the shared UI configuration that decorates the form models
// built from them.
package contracts

import (
	"embed"
	"fmt"
)

//go:embed specs/*.yaml
var specs embed.FS

// Document returns the raw OpenAPI document for the named service.
func Document(name string) ([]byte, error) {
	data, err := specs.ReadFile("specs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("contracts: unknown service %q: %w", name, err)
	}
	return data, nil
}

func must(name string) []byte {
	data, err := Document(name)
	if err != nil {
		panic(err)
	}
	return data
}

// Fertilizer is the fertilizer recommendation service contract.
func Fertilizer() []byte { return must("fertilizer") }

// Crop is the crop recommendation service contract.
func Crop() []byte { return must("crop") }

// Irrigation is the irrigation planning service contract.
func Irrigation() []byte { return must("irrigation") }

// Auth is the OTP login service contract.
func Auth() []byte { return must("auth") }

// UIConfig is the YAML UI decoration applied on top of the built models.
func UIConfig() []byte { return must("ui") }

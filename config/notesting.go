//go:build !testing

package config

const isTesting = false

func testingConfig() Config {
	panic("testing config is only available with the testing build tag")
}

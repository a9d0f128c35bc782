package version

// Release version injected by the linker: -ldflags "-X github.com/certusone/wormhole/connect/pkg/version.version=v0.1.0"
var version = "development"

func Version() string {
	if version == "" {
		panic("binary compiled with empty version")
	}
	return version
}

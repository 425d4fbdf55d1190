//go:build dev

package canvascli

func init() {
	devMode = true
}

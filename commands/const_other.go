//go:build !linux && !darwin && !windows

package commands

const (
	_etc = "/usr/local/etc/biblioteca"

	DEFAULT_CREDENTIALS = _etc + "/sheets/.google/credentials.json"
)

package commands

const (
	_etc = `C:\ProgramData\biblioteca`

	DEFAULT_CREDENTIALS = _etc + `\sheets\.google\credentials.json`
)

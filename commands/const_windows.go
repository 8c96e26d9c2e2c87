package commands

const (
	_etc = `C:\ProgramData\project-portal`
	_var = `C:\ProgramData\project-portal`

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + `\.google\credentials.json`
)

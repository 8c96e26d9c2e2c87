package commands

const (
	_etc = "/usr/local/etc/project-portal"
	_var = "/usr/local/var/project-portal"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)

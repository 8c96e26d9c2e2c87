package commands

const (
	_etc = "/usr/local/etc/com.github/project-portal"
	_var = "/usr/local/var/com.github/project-portal"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)

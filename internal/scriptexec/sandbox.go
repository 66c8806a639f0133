package scriptexec

import (
	"github.com/Algiras/skillz/internal/config"
)

// buildCommand resolves the interpreter (substituting an isolated env's
// interpreter binary when an env_path is present) and, when a sandbox
// mode is configured, wraps it in the chosen sandbox's argument grammar.
// No third-party client library for bubblewrap/firejail/nsjail exists;
// every backend is invoked the same way the tools themselves are, as a
// plain subprocess built with os/exec (see DESIGN.md's stdlib
// justification).
func buildCommand(interpreter, entryPath, envPath string, sandbox config.SandboxMode, roots []string, allowNetwork bool) (command string, args []string, extraEnv map[string]string) {
	command, args, extraEnv = resolveInterpreter(interpreter, entryPath, envPath)

	switch sandbox {
	case config.SandboxBubblewrap:
		bwrapArgs := []string{"--ro-bind", "/usr", "/usr", "--ro-bind", "/lib", "/lib", "--proc", "/proc", "--dev", "/dev"}
		for _, root := range roots {
			bwrapArgs = append(bwrapArgs, "--bind", root, root)
		}
		if !allowNetwork {
			bwrapArgs = append(bwrapArgs, "--unshare-net")
		}
		bwrapArgs = append(bwrapArgs, "--die-with-parent", command)
		bwrapArgs = append(bwrapArgs, args...)
		return "bwrap", bwrapArgs, extraEnv

	case config.SandboxFirejail:
		fjArgs := []string{"--quiet"}
		if !allowNetwork {
			fjArgs = append(fjArgs, "--net=none")
		}
		for _, root := range roots {
			fjArgs = append(fjArgs, "--whitelist="+root)
		}
		fjArgs = append(fjArgs, "--", command)
		fjArgs = append(fjArgs, args...)
		return "firejail", fjArgs, extraEnv

	case config.SandboxNsjail:
		njArgs := []string{"--quiet", "--disable_clone_newnet=" + boolFlag(allowNetwork)}
		for _, root := range roots {
			njArgs = append(njArgs, "--bindmount", root+":"+root)
		}
		njArgs = append(njArgs, "--", command)
		njArgs = append(njArgs, args...)
		return "nsjail", njArgs, extraEnv

	default: // config.SandboxNone: pass-through
		return command, args, extraEnv
	}
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// resolveInterpreter substitutes the isolated environment's interpreter
// binary when the tool has a dependency env_path: python3/
// python use env_path/bin/python; node/nodejs set NODE_PATH instead of
// swapping the binary.
func resolveInterpreter(interpreter, entryPath, envPath string) (command string, args []string, extraEnv map[string]string) {
	extraEnv = map[string]string{}
	if interpreter == "" {
		return entryPath, nil, extraEnv
	}

	switch interpreter {
	case "python3", "python":
		if envPath != "" {
			return envPath + "/bin/python", []string{entryPath}, extraEnv
		}
		return interpreter, []string{entryPath}, extraEnv
	case "node", "nodejs":
		if envPath != "" {
			extraEnv["NODE_PATH"] = envPath + "/node_modules"
		}
		return interpreter, []string{entryPath}, extraEnv
	default:
		return interpreter, []string{entryPath}, extraEnv
	}
}

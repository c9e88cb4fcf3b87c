package websvc

import (
	"fmt"
	"regexp"
)

// LaunchScript rewrites user code into the process that actually gets run
// inside the sandbox, per framework, and returns the shell command used to
// start it detached. The "why" is URL-base-path handling: Dash needs
// server-side mounting, Gradio ignores user-specified ports, the others can
// serve at root and have their path stripped by the proxy (spec.md §4.4).
func LaunchScript(framework Framework, userCode string, internalPort int, shortID string) (code string, runner []string) {
	switch framework {
	case FrameworkGradio:
		return patchGradio(userCode, internalPort), []string{"python3", "/tmp/app.py"}
	case FrameworkDash:
		return patchDash(userCode, internalPort, shortID), []string{"python3", "/tmp/app.py"}
	case FrameworkStreamlit:
		return userCode, []string{"streamlit", "run", "/tmp/app.py",
			"--server.address=0.0.0.0", fmt.Sprintf("--server.port=%d", internalPort)}
	case FrameworkFastAPI:
		return userCode, []string{"uvicorn", "app:app", "--app-dir", "/tmp", "--host", "0.0.0.0", "--port", fmt.Sprintf("%d", internalPort)}
	case FrameworkFlask:
		return wrapFlask(userCode, internalPort), []string{"python3", "/tmp/app.py"}
	default:
		return userCode, []string{"python3", "/tmp/app.py"}
	}
}

var gradioLaunchCall = regexp.MustCompile(`\.launch\s*\([^)]*\)`)

// patchGradio textually rewrites every .launch(...) call (one without nested
// parentheses) to force server_name/server_port, dropping the user-supplied
// arguments. Code with no matching call is returned unchanged apart from a
// trailing newline.
func patchGradio(userCode string, internalPort int) string {
	forced := fmt.Sprintf(`.launch(server_name="0.0.0.0", server_port=%d)`, internalPort)
	if gradioLaunchCall.MatchString(userCode) {
		return gradioLaunchCall.ReplaceAllString(userCode, forced)
	}
	return userCode + "\n"
}

var dashConstructor = regexp.MustCompile(`Dash\s*\(([^)]*)\)`)
var dashRunCall = regexp.MustCompile(`\.run\s*\([^)]*\)`)

// patchDash textually rewrites the Dash(...) constructor to inject
// url_base_pathname, and pins app.run(...) to internalPort.
func patchDash(userCode string, internalPort int, shortID string) string {
	basePath := fmt.Sprintf("/proxy/%s/", shortID)
	code := dashConstructor.ReplaceAllStringFunc(userCode, func(match string) string {
		inner := dashConstructor.FindStringSubmatch(match)[1]
		if inner == "" {
			return fmt.Sprintf(`Dash(url_base_pathname=%q)`, basePath)
		}
		return fmt.Sprintf(`Dash(%s, url_base_pathname=%q)`, inner, basePath)
	})
	code = dashRunCall.ReplaceAllString(code, fmt.Sprintf(`.run(host="0.0.0.0", port=%d)`, internalPort))
	return code
}

// wrapFlask appends an `if __name__ == '__main__'` block to the user code
// that serves its module-level app on 0.0.0.0:port.
func wrapFlask(userCode string, internalPort int) string {
	return fmt.Sprintf("%s\nif __name__ == '__main__':\n    app.run(host='0.0.0.0', port=%d)\n", userCode, internalPort)
}

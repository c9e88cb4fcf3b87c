// Package websvc implements the WebServiceSupervisor component: it
// classifies code as a long-running web application, allocates a host port,
// patches framework-specific startup, and waits for readiness so the
// ReverseProxy can reach it.
package websvc

import "strings"

// Framework mirrors internal/domain/webservice.Framework as strings to keep
// detection free of a direct domain import cycle with execution.
type Framework string

const (
	FrameworkStreamlit Framework = "streamlit"
	FrameworkGradio    Framework = "gradio"
	FrameworkFastAPI   Framework = "fastapi"
	FrameworkFlask     Framework = "flask"
	FrameworkDash      Framework = "dash"
	FrameworkNone      Framework = ""
)

// Detector implements the execution.Classifier interface.
type Detector struct{}

// NewDetector constructs a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect classifies code+packages per spec.md §4.4's ordered rule table;
// first match wins.
func (Detector) Detect(code string, packages []string) (string, bool) {
	f := detect(code, packages)
	return string(f), f != FrameworkNone
}

func detect(code string, packages []string) Framework {
	has := func(pkg string) bool { return hasPackage(packages, pkg) }
	codeHas := func(needles ...string) bool {
		for _, n := range needles {
			if strings.Contains(code, n) {
				return true
			}
		}
		return false
	}

	switch {
	case has("streamlit") || codeHas("st."):
		return FrameworkStreamlit
	case has("gradio") || codeHas("import gradio"):
		return FrameworkGradio
	case has("fastapi") || has("uvicorn") || (codeHas("fastapi") && codeHas("uvicorn")):
		return FrameworkFastAPI
	case has("flask") || codeHas("flask"):
		return FrameworkFlask
	case has("dash") || (codeHas("dash") && has("plotly")):
		return FrameworkDash
	default:
		return FrameworkNone
	}
}

func hasPackage(set []string, target string) bool {
	for _, s := range set {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}

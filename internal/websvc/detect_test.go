package websvc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3elabs/execforge/internal/websvc"
)

func TestDetectOrderedRules(t *testing.T) {
	d := websvc.NewDetector()

	cases := []struct {
		name      string
		code      string
		packages  []string
		framework string
	}{
		{"streamlit by package", "", []string{"streamlit"}, "streamlit"},
		{"streamlit by code", "st.title('hi')", nil, "streamlit"},
		{"gradio by import", "import gradio as gr", nil, "gradio"},
		{"fastapi by package", "", []string{"fastapi"}, "fastapi"},
		{"flask by code", "from flask import Flask", nil, "flask"},
		{"dash by package", "", []string{"dash"}, "dash"},
		{"dash by code+plotly", "import dash", []string{"plotly"}, "dash"},
		{"none", "print('hi')", []string{"requests"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			framework, isWeb := d.Detect(tc.code, tc.packages)
			require.Equal(t, tc.framework, framework)
			require.Equal(t, tc.framework != "", isWeb)
		})
	}
}

func TestAllocatePortStaysInRange(t *testing.T) {
	port, err := websvc.AllocatePort(9000, 9999, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, port, 9000)
	require.LessOrEqual(t, port, 9999)
}

func TestLaunchScriptGradioForcesPort(t *testing.T) {
	code := `demo.launch(share=True)`
	patched, runner := websvc.LaunchScript(websvc.FrameworkGradio, code, 8501, "abcd1234")
	require.Contains(t, patched, "server_port=8501")
	require.Equal(t, []string{"python3", "/tmp/app.py"}, runner)
}

func TestLaunchScriptDashInjectsBasePath(t *testing.T) {
	code := `app = Dash(__name__)
app.run(debug=True)`
	patched, _ := websvc.LaunchScript(websvc.FrameworkDash, code, 8501, "abcd1234")
	require.Contains(t, patched, "/proxy/abcd1234/")
	require.Contains(t, patched, "port=8501")
}

package agent

import "encoding/json"

// sandboxPolicy is the permission policy serialized for agent CLIs when a
// conversation runs in sandboxed mode. Write access is scoped to the
// working directory; the deny list covers credential material regardless of
// where the working directory points.
type sandboxPolicy struct {
	AllowedWritePaths []string `json:"allowed_write_paths"`
	DeniedPaths       []string `json:"denied_paths"`
	AllowedDomains    []string `json:"allowed_domains"`
}

var sandboxDeniedPaths = []string{
	"~/.ssh",
	"~/.aws",
	"~/.gnupg",
	"~/.config/gcloud",
	"~/.kube",
	"**/.env",
	"**/.env.*",
	"**/credentials",
	"**/credentials.json",
	"**/*.pem",
	"**/*.key",
}

var sandboxAllowedDomains = []string{
	"github.com",
	"raw.githubusercontent.com",
	"registry.npmjs.org",
	"pypi.org",
	"files.pythonhosted.org",
	"proxy.golang.org",
	"sum.golang.org",
}

// buildSandboxPolicy serializes the policy for a working directory. A
// conversation without one gets no write grants at all.
func buildSandboxPolicy(workingDir string) (string, error) {
	writePaths := []string{}
	if workingDir != "" {
		writePaths = append(writePaths, workingDir)
	}
	policy := sandboxPolicy{
		AllowedWritePaths: writePaths,
		DeniedPaths:       sandboxDeniedPaths,
		AllowedDomains:    sandboxAllowedDomains,
	}
	raw, err := json.Marshal(policy)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

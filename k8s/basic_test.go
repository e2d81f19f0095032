package k8s

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: secret
`

func TestInitK8s(t *testing.T) {
	prev := K8sClient
	t.Cleanup(func() { K8sClient = prev })
	K8sClient = nil

	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0o600))

	require.NoError(t, InitK8s(path))
	assert.NotNil(t, K8sClient)
}

func TestInitK8sMissingKubeconfig(t *testing.T) {
	prev := K8sClient
	t.Cleanup(func() { K8sClient = prev })
	K8sClient = nil

	assert.Error(t, InitK8s(filepath.Join(t.TempDir(), "missing")))
	assert.Nil(t, K8sClient)
}

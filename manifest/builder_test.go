package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
)

const gdalManifest = `apiVersion: v1
kind: Pod
metadata:
  name: gdal
  labels:
    app: gdal
spec:
  containers:
    - name: gdal
      image: ghcr.io/osgeo/gdal:ubuntu-small-latest
      command: ["gdalinfo"]
      args: ["--version"]
`

const pythonManifest = `metadata:
  name: python
spec:
  containers:
    - image: python:3.12-slim
      command: ["python"]
      args: ["--version"]
      env:
        - name: PYTHONUNBUFFERED
          value: "1"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestBuildFromTemplate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gdal.yml", gdalManifest)

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	b := &Builder{Now: fixedClock(now)}

	spec, err := b.BuildFromTemplate(path)
	require.NoError(t, err)

	want := &WorkloadSpec{
		Name:          "gdal-20260314150926",
		Namespace:     DefaultNamespace,
		ContainerName: "gdal",
		Image:         "ghcr.io/osgeo/gdal:ubuntu-small-latest",
		Command:       []string{"gdalinfo"},
		Args:          []string{"--version"},
		RestartPolicy: corev1.RestartPolicyNever,
		Labels:        map[string]string{"app": "gdal", ManagedByLabel: "podrun"},
	}
	if diff := cmp.Diff(want, spec); diff != "" {
		t.Errorf("BuildFromTemplate() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFromTemplateNamesAreUniquePerSecond(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gdal.yml", gdalManifest)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first, err := (&Builder{Now: fixedClock(now)}).BuildFromTemplate(path)
	require.NoError(t, err)
	second, err := (&Builder{Now: fixedClock(now.Add(time.Second))}).BuildFromTemplate(path)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^gdal-\d{14}$`), first.Name)
	assert.Equal(t, "gdal-20260102030405", first.Name)
	assert.Equal(t, "gdal-20260102030406", second.Name)
	assert.NotEqual(t, first.Name, second.Name)
}

func TestBuildFromTemplateUsesManifestNamespace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.yml", `metadata:
  name: job
  namespace: batch
spec:
  containers:
    - image: busybox
`)

	spec, err := (&Builder{Namespace: "other"}).BuildFromTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "batch", spec.Namespace)
	assert.Equal(t, "job", spec.ContainerName)
}

func TestBuildFromTemplateNotFound(t *testing.T) {
	b := &Builder{}

	_, err := b.BuildFromTemplate(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.BuildFromTemplate(t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildFromTemplateMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{"no name", "spec:\n  containers:\n    - image: busybox\n", "metadata.name"},
		{"no containers", "metadata:\n  name: x\n", "spec.containers"},
		{"no image", "metadata:\n  name: x\nspec:\n  containers:\n    - name: x\n", "spec.containers[0].image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "m.yml", tt.manifest)

			_, err := (&Builder{}).BuildFromTemplate(path)

			var missing *MissingFieldError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tt.field, missing.Field)
		})
	}
}

func TestBuildFromTemplateRejectsBadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yml", "metadata: [unterminated")

	_, err := (&Builder{}).BuildFromTemplate(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBuildFromTemplateRejectsInvalidName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "m.yml", "metadata:\n  name: Not_Valid\nspec:\n  containers:\n    - image: busybox\n")

	_, err := (&Builder{}).BuildFromTemplate(path)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestBuildFromTemplateContainerName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "m.yml", "metadata:\n  name: my.job\nspec:\n  containers:\n    - image: busybox\n")

	spec, err := (&Builder{}).BuildFromTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "my-job", spec.ContainerName)
}

func TestBuildFromTemplateRejectsInvalidContainerName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "m.yml", "metadata:\n  name: job\nspec:\n  containers:\n    - name: my.container\n      image: busybox\n")

	_, err := (&Builder{}).BuildFromTemplate(path)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestBuildFromTemplateRestartPolicy(t *testing.T) {
	const tmpl = "metadata:\n  name: job\nspec:\n  restartPolicy: %s\n  containers:\n    - image: busybox\n"
	dir := t.TempDir()

	spec, err := (&Builder{}).BuildFromTemplate(writeFile(t, dir, "never.yml", fmt.Sprintf(tmpl, "Never")))
	require.NoError(t, err)
	assert.Equal(t, corev1.RestartPolicyNever, spec.RestartPolicy)

	for _, policy := range []string{"Always", "OnFailure"} {
		_, err := (&Builder{}).BuildFromTemplate(writeFile(t, dir, policy+".yml", fmt.Sprintf(tmpl, policy)))
		assert.ErrorIs(t, err, ErrRestartPolicy, policy)
	}
}

func TestBuildFromCommandLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "python.yml", pythonManifest)

	b := &Builder{TemplateDir: dir, Namespace: "jobs", Now: fixedClock(time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC))}

	spec, err := b.BuildFromCommandLine("python main.py 100")
	require.NoError(t, err)

	assert.Equal(t, "python-20260506070809", spec.Name)
	assert.Equal(t, "jobs", spec.Namespace)
	assert.Equal(t, "python:3.12-slim", spec.Image)
	assert.Equal(t, []string{"python"}, spec.Command)
	assert.Equal(t, []string{"main.py", "100"}, spec.Args)
	assert.Equal(t, []EnvVar{{Name: "PYTHONUNBUFFERED", Value: "1"}}, spec.Env)
}

func TestBuildFromCommandLineRespectsQuoting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "echo.yaml", "metadata:\n  name: echo\nspec:\n  containers:\n    - image: busybox\n      args: [default]\n")

	spec, err := (&Builder{TemplateDir: dir}).BuildFromCommandLine(`echo "a b"`)
	require.NoError(t, err)

	assert.Equal(t, []string{"echo"}, spec.Command)
	assert.Equal(t, []string{"a b"}, spec.Args)
}

func TestBuildFromCommandLineErrors(t *testing.T) {
	b := &Builder{TemplateDir: t.TempDir()}

	_, err := b.BuildFromCommandLine("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = b.BuildFromCommandLine("nosuchtemplate --flag")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.BuildFromCommandLine(`echo "unterminated`)
	assert.Error(t, err)
}

func TestBuildFromImage(t *testing.T) {
	b := &Builder{Now: fixedClock(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))}

	spec, err := b.BuildFromImage("ghcr.io/osgeo/gdal:ubuntu-small-latest")
	require.NoError(t, err)

	assert.Equal(t, "gdal-20260701000000", spec.Name)
	assert.Equal(t, "gdal", spec.ContainerName)
	assert.Equal(t, "ghcr.io/osgeo/gdal:ubuntu-small-latest", spec.Image)
	assert.Equal(t, []string{"sh", "-c"}, spec.Command)
	assert.Len(t, spec.Args, 1)
	assert.Equal(t, corev1.RestartPolicyNever, spec.RestartPolicy)
}

func TestImageBaseName(t *testing.T) {
	tests := map[string]string{
		"busybox":                                  "busybox",
		"busybox:1.36":                             "busybox",
		"ghcr.io/osgeo/gdal:ubuntu-small-latest":   "gdal",
		"localhost:5000/team/my_tool:v2":           "my-tool",
		"docker.io/library/python@sha256:deadbeef": "python",
		"registry/App.Name":                        "app-name",
		"":                                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ImageBaseName(in), in)
	}
}

func TestBuildFromImageRejectsEmptyReference(t *testing.T) {
	_, err := (&Builder{}).BuildFromImage("")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPod(t *testing.T) {
	spec := &WorkloadSpec{
		Name:          "gdal-20260314150926",
		Namespace:     "default",
		ContainerName: "gdal",
		Image:         "gdal",
		Command:       []string{"gdalinfo"},
		Args:          []string{"--version"},
		Env:           []EnvVar{{Name: "A", Value: "1"}},
		RestartPolicy: corev1.RestartPolicyNever,
		Labels:        map[string]string{ManagedByLabel: "podrun"},
	}

	pod := spec.Pod()

	assert.Equal(t, spec.Name, pod.Name)
	assert.Equal(t, spec.Namespace, pod.Namespace)
	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)
	require.Len(t, pod.Spec.Containers, 1)
	c := pod.Spec.Containers[0]
	assert.Equal(t, "gdal", c.Name)
	assert.Equal(t, []string{"gdalinfo"}, c.Command)
	assert.Equal(t, []corev1.EnvVar{{Name: "A", Value: "1"}}, c.Env)
}

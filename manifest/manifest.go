package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
)

var (
	// ErrNotFound is returned when a manifest path does not resolve to a readable file.
	ErrNotFound = errors.New("manifest not found")
	// ErrEmptyCommand is returned when a command line holds no words.
	ErrEmptyCommand = errors.New("empty command")
	// ErrInvalidName is returned when a generated pod name is not a valid object name.
	ErrInvalidName = errors.New("invalid workload name")
	// ErrRestartPolicy is returned for templates asking for anything but restartPolicy Never.
	ErrRestartPolicy = errors.New("unsupported restart policy")
)

// MissingFieldError reports a required manifest field that was absent or empty.
type MissingFieldError struct {
	Path  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("manifest %s: missing required field %s", e.Path, e.Field)
}

// Manifest is the subset of a Pod manifest the builder understands.
type Manifest struct {
	Metadata Metadata `yaml:"metadata"`
	Spec     PodSpec  `yaml:"spec"`
}

type Metadata struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
}

type PodSpec struct {
	RestartPolicy string      `yaml:"restartPolicy"`
	Containers    []Container `yaml:"containers"`
}

type Container struct {
	Name    string   `yaml:"name"`
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []EnvVar `yaml:"env"`
}

type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(path string) error {
	switch {
	case m.Metadata.Name == "":
		return &MissingFieldError{Path: path, Field: "metadata.name"}
	case len(m.Spec.Containers) == 0:
		return &MissingFieldError{Path: path, Field: "spec.containers"}
	case m.Spec.Containers[0].Image == "":
		return &MissingFieldError{Path: path, Field: "spec.containers[0].image"}
	case m.Spec.RestartPolicy != "" && m.Spec.RestartPolicy != string(corev1.RestartPolicyNever):
		return fmt.Errorf("%w: manifest %s: spec.restartPolicy %q, pods run once with Never", ErrRestartPolicy, path, m.Spec.RestartPolicy)
	}
	return nil
}

// Package manifest turns templates, image references and command lines into
// single-use pod specs with unique, timestamped names.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buildkite/shellwords"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	DefaultNamespace   = "default"
	DefaultTemplateDir = "conf"

	nameTimeLayout = "20060102150405"
)

// demoScript is run by pods built from a bare image reference.
const demoScript = `for i in 0 25 50 75 100; do echo "progress ${i}%"; sleep 1; done`

// Builder produces WorkloadSpecs. The zero value loads templates from
// DefaultTemplateDir into DefaultNamespace using the wall clock.
type Builder struct {
	TemplateDir string
	Namespace   string
	Now         func() time.Time
}

// BuildFromTemplate loads the manifest at path and stamps its name.
func (b *Builder) BuildFromTemplate(path string) (*WorkloadSpec, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}

	name, err := b.stamp(m.Metadata.Name)
	if err != nil {
		return nil, err
	}

	c := m.Spec.Containers[0]
	containerName := c.Name
	if containerName == "" {
		containerName = labelName(m.Metadata.Name)
	}
	if errs := validation.IsDNS1123Label(containerName); len(errs) > 0 {
		return nil, fmt.Errorf("%w: container %q: %s", ErrInvalidName, containerName, strings.Join(errs, "; "))
	}

	namespace := m.Metadata.Namespace
	if namespace == "" {
		namespace = b.namespace()
	}

	return &WorkloadSpec{
		Name:          name,
		Namespace:     namespace,
		ContainerName: containerName,
		Image:         c.Image,
		Command:       c.Command,
		Args:          c.Args,
		Env:           c.Env,
		RestartPolicy: corev1.RestartPolicyNever,
		Labels:        labels(m.Metadata.Labels),
	}, nil
}

// BuildFromImage builds a demonstration pod for an image reference such as
// "ghcr.io/osgeo/gdal:ubuntu-small-latest", named after its last path segment.
func (b *Builder) BuildFromImage(image string) (*WorkloadSpec, error) {
	base := ImageBaseName(image)
	if base == "" {
		return nil, fmt.Errorf("%w: no name in image reference %q", ErrInvalidName, image)
	}

	name, err := b.stamp(base)
	if err != nil {
		return nil, err
	}

	return &WorkloadSpec{
		Name:          name,
		Namespace:     b.namespace(),
		ContainerName: base,
		Image:         image,
		Command:       []string{"sh", "-c"},
		Args:          []string{demoScript},
		RestartPolicy: corev1.RestartPolicyNever,
		Labels:        labels(nil),
	}, nil
}

// BuildFromCommandLine splits raw like a POSIX shell. The first word selects
// the template {TemplateDir}/{word}.yml and becomes the container command, the
// remaining words become its args.
func (b *Builder) BuildFromCommandLine(raw string) (*WorkloadSpec, error) {
	words, err := shellwords.SplitPosix(raw)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", raw, err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	spec, err := b.BuildFromTemplate(b.templatePath(words[0]))
	if err != nil {
		return nil, err
	}

	spec.Command = []string{words[0]}
	spec.Args = append([]string(nil), words[1:]...)
	return spec, nil
}

// ImageBaseName returns the last path segment of an image reference without
// its tag or digest, normalised for use in an object name.
func ImageBaseName(image string) string {
	ref := image
	if i := strings.Index(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}

	return labelName(ref)
}

// labelName lower-cases name and turns '_' and '.' into '-' so a manifest or
// image name can serve as a container name.
func labelName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("_", "-", ".", "-").Replace(name)
	return strings.Trim(name, "-")
}

func (b *Builder) stamp(base string) (string, error) {
	name := fmt.Sprintf("%s-%s", base, b.now().Format(nameTimeLayout))
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return "", fmt.Errorf("%w: %q: %s", ErrInvalidName, name, strings.Join(errs, "; "))
	}
	return name, nil
}

func (b *Builder) templatePath(key string) string {
	dir := b.TemplateDir
	if dir == "" {
		dir = DefaultTemplateDir
	}
	key = filepath.Base(key)

	yml := filepath.Join(dir, key+".yml")
	if _, err := os.Stat(yml); err == nil {
		return yml
	}
	yaml := filepath.Join(dir, key+".yaml")
	if _, err := os.Stat(yaml); err == nil {
		return yaml
	}
	return yml
}

func (b *Builder) namespace() string {
	if b.Namespace == "" {
		return DefaultNamespace
	}
	return b.Namespace
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func labels(from map[string]string) map[string]string {
	out := make(map[string]string, len(from)+1)
	for k, v := range from {
		out[k] = v
	}
	out[ManagedByLabel] = "podrun"
	return out
}

package kubernetes

import (
	"strings"

	"github.com/distribution/reference"

	"spacegun/internal/domain"
)

// ParseImage turns a container image string into a domain image. Name is the
// repository path without the registry host and the Docker Hub library/
// prefix, so the same image matches across registries and clusters.
func ParseImage(image string) (*domain.Image, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, err
	}
	result := &domain.Image{
		Name: strings.TrimPrefix(reference.Path(named), "library/"),
		URL:  image,
	}
	if tagged, ok := named.(reference.Tagged); ok {
		result.Tag = tagged.Tag()
	}
	return result, nil
}

// imageOf returns the parsed image of the first container, or nil when there
// is none or it cannot be parsed.
func imageOf(images []string) *domain.Image {
	if len(images) == 0 {
		return nil
	}
	image, err := ParseImage(images[0])
	if err != nil {
		return nil
	}
	return image
}

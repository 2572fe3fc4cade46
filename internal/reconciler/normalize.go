package reconciler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// serverFields are owned by the API server and never compared or written.
var serverFields = [][]string{
	{"metadata", "uid"},
	{"metadata", "generation"},
	{"metadata", "creationTimestamp"},
	{"metadata", "selfLink"},
	{"metadata", "managedFields"},
	{"status"},
}

// podSpecPath locates the pod template spec of a kind.
func podSpecPath(kind Kind) []string {
	if kind == KindBatch {
		return []string{"spec", "jobTemplate", "spec", "template", "spec"}
	}
	return []string{"spec", "template", "spec"}
}

// canonical deep copies obj through JSON so that values read from the API
// and values read back from a stored snapshot share the same Go types.
func canonical(obj map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	return out, nil
}

func resourceName(obj map[string]interface{}) string {
	name, _, _ := unstructured.NestedString(obj, "metadata", "name")
	return name
}

func annotation(obj map[string]interface{}, key string) (string, bool) {
	annotations, _, _ := unstructured.NestedStringMap(obj, "metadata", "annotations")
	v, ok := annotations[key]
	return v, ok
}

// revision returns the controller revision of obj, 0 when absent.
func revision(obj map[string]interface{}) int64 {
	v, ok := annotation(obj, RevisionAnnotation)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func stampedAt(obj map[string]interface{}) (time.Time, bool) {
	v, ok := annotation(obj, TimestampAnnotation)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func setAnnotation(obj map[string]interface{}, key, value string) {
	annotations, _, _ := unstructured.NestedStringMap(obj, "metadata", "annotations")
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[key] = value
	_ = unstructured.SetNestedStringMap(obj, annotations, "metadata", "annotations")
}

// dropAnnotations removes the annotations the reconciler must not compare.
// An annotation map left empty is removed.
func dropAnnotations(obj map[string]interface{}) {
	annotations, found, _ := unstructured.NestedStringMap(obj, "metadata", "annotations")
	if !found {
		return
	}
	for key := range annotations {
		if key == RevisionAnnotation || key == LastAppliedAnnotation || strings.HasPrefix(key, spacegunAnnotationPrefix) {
			delete(annotations, key)
		}
	}
	if len(annotations) == 0 {
		unstructured.RemoveNestedField(obj, "metadata", "annotations")
		return
	}
	_ = unstructured.SetNestedStringMap(obj, annotations, "metadata", "annotations")
}

func stripServerFields(obj map[string]interface{}) {
	for _, path := range serverFields {
		unstructured.RemoveNestedField(obj, path...)
	}
}

// containerImages maps container names to images, init containers included.
func containerImages(obj map[string]interface{}, kind Kind) map[string]string {
	images := map[string]string{}
	for _, list := range []string{"initContainers", "containers"} {
		containers, _, _ := unstructured.NestedSlice(obj, append(podSpecPath(kind), list)...)
		for _, c := range containers {
			container, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := container["name"].(string)
			image, _ := container["image"].(string)
			images[name] = image
		}
	}
	return images
}

// rewriteImages calls fn for every container and stores its result as the
// container image. An empty result removes the image field.
func rewriteImages(obj map[string]interface{}, kind Kind, fn func(name, image string) string) {
	for _, list := range []string{"initContainers", "containers"} {
		path := append(podSpecPath(kind), list)
		containers, found, _ := unstructured.NestedSlice(obj, path...)
		if !found {
			continue
		}
		for i, c := range containers {
			container, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := container["name"].(string)
			image, _ := container["image"].(string)
			if updated := fn(name, image); updated != "" {
				container["image"] = updated
			} else {
				delete(container, "image")
			}
			containers[i] = container
		}
		_ = unstructured.SetNestedSlice(obj, containers, path...)
	}
}

// normalize returns the comparable form of obj.
func normalize(obj map[string]interface{}, kind Kind, ignoreImage bool) (map[string]interface{}, error) {
	out, err := canonical(obj)
	if err != nil {
		return nil, err
	}
	stripServerFields(out)
	unstructured.RemoveNestedField(out, "metadata", "resourceVersion")
	unstructured.RemoveNestedField(out, "metadata", "namespace")
	dropAnnotations(out)
	if ignoreImage {
		rewriteImages(out, kind, func(string, string) string { return "" })
	}
	return out, nil
}

package kubernetes

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"spacegun/internal/domain"
	"spacegun/internal/reconciler"
)

var kinds = map[reconciler.Kind]schema.GroupVersionKind{
	reconciler.KindDeployment: {Group: "apps", Version: "v1", Kind: "Deployment"},
	reconciler.KindBatch:      {Group: "batch", Version: "v1", Kind: "CronJob"},
}

// store is the unstructured reconciler.ResourceStore of a Repository.
type store struct {
	repo *Repository
}

func gvkOf(kind reconciler.Kind) (schema.GroupVersionKind, error) {
	gvk, ok := kinds[kind]
	if !ok {
		return schema.GroupVersionKind{}, fmt.Errorf("unsupported resource kind %q", kind)
	}
	return gvk, nil
}

func (s *store) List(ctx context.Context, group domain.ServerGroup, kind reconciler.Kind) ([]map[string]interface{}, error) {
	c, err := s.repo.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	gvk, err := gvkOf(kind)
	if err != nil {
		return nil, err
	}

	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))
	if err := c.client.List(ctx, list, client.InNamespace(c.namespace(group))); err != nil {
		return nil, err
	}
	objs := make([]map[string]interface{}, 0, len(list.Items))
	for i := range list.Items {
		item := list.Items[i]
		item.SetGroupVersionKind(gvk)
		objs = append(objs, item.Object)
	}
	return objs, nil
}

func (s *store) Get(ctx context.Context, group domain.ServerGroup, kind reconciler.Kind, name string) (map[string]interface{}, error) {
	c, err := s.repo.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	gvk, err := gvkOf(kind)
	if err != nil {
		return nil, err
	}

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)
	key := client.ObjectKey{Namespace: c.namespace(group), Name: name}
	if err := c.client.Get(ctx, key, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, name, reconciler.ErrNotFound)
		}
		return nil, err
	}
	return obj.Object, nil
}

func (s *store) Create(ctx context.Context, group domain.ServerGroup, kind reconciler.Kind, data map[string]interface{}) error {
	c, obj, err := s.prepare(group, kind, data)
	if err != nil {
		return err
	}
	return c.client.Create(ctx, obj)
}

func (s *store) Update(ctx context.Context, group domain.ServerGroup, kind reconciler.Kind, data map[string]interface{}) error {
	c, obj, err := s.prepare(group, kind, data)
	if err != nil {
		return err
	}
	return c.client.Update(ctx, obj)
}

func (s *store) prepare(group domain.ServerGroup, kind reconciler.Kind, data map[string]interface{}) (*cluster, *unstructured.Unstructured, error) {
	c, err := s.repo.cluster(group.Cluster)
	if err != nil {
		return nil, nil, err
	}
	gvk, err := gvkOf(kind)
	if err != nil {
		return nil, nil, err
	}
	obj := &unstructured.Unstructured{Object: data}
	if obj.GetKind() == "" {
		obj.SetGroupVersionKind(gvk)
	}
	if obj.GetNamespace() == "" {
		obj.SetNamespace(c.namespace(group))
	}
	return c, obj, nil
}

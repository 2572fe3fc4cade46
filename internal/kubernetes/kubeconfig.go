package kubernetes

import (
	"fmt"
	"sort"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Context is a resolved kubeconfig context.
type Context struct {
	Name             string
	Config           *rest.Config
	DefaultNamespace string
}

func loadingRules(kubeconfig string) *clientcmd.ClientConfigLoadingRules {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	return rules
}

// LoadContexts resolves the named contexts of kubeconfig, or of the default
// kubeconfig locations when kubeconfig is empty. No names selects every
// context in the file.
func LoadContexts(kubeconfig string, names []string) ([]Context, error) {
	rules := loadingRules(kubeconfig)

	if len(names) == 0 {
		raw, err := rules.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		for name := range raw.Contexts {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("kubeconfig has no contexts")
	}

	contexts := make([]Context, 0, len(names))
	for _, name := range names {
		loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{CurrentContext: name})
		cfg, err := loader.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load context %s: %w", name, err)
		}
		namespace, _, err := loader.Namespace()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve namespace of context %s: %w", name, err)
		}
		contexts = append(contexts, Context{Name: name, Config: cfg, DefaultNamespace: namespace})
	}
	return contexts, nil
}

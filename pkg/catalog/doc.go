// Package catalog serves the model catalog backing the models endpoints.
//
// The provider does not expose a model-listing API, so the catalog ships a
// built-in set of known models. Deployments can replace the built-ins with a
// YAML catalog file and optionally hot-reload it on change; reloads swap the
// serving snapshot atomically and never disturb in-flight reads. A reload
// that fails to parse keeps the previous snapshot serving.
package catalog

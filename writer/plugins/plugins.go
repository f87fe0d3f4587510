package plugins

import (
	"github.com/metrico/qryn-ai/writer/config"
	"github.com/metrico/qryn-ai/writer/store"
)

// NewMergeStore builds the merge store selected by merge.store.
type NewMergeStore = func(cfg *config.QrynAIConfig) (store.Store, error)

const mergeStorePlugin = "merge_store_"

func RegisterMergeStorePlugin(name string, factory NewMergeStore) {
	registerPlugin[NewMergeStore](mergeStorePlugin + name)(factory)
}

func GetMergeStorePlugin(name string) *NewMergeStore {
	return getPlugin[NewMergeStore](mergeStorePlugin + name)()
}

package domain

// ConnManager resolves exchange clients by provider name.
type ConnManager interface {
	Providers() []string
	StreamAPI(provider string) (ProviderStreamAPI, error)
	SyncAPI(provider string) (ProviderSyncAPI, error)
	DepthValidator(provider string) (DepthUpdateValidator, error)
}

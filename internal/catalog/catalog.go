// Package catalog declares the narrow contracts the identity core consumes
// from the marketplace catalog services. The catalog itself (offers,
// coupons, bulletins, branches, favorites) lives outside this module.
package catalog

import "context"

// FileStore persists uploaded binary assets (company logos) and returns a
// publicly addressable URL. Upload failure aborts company registration.
type FileStore interface {
	Store(ctx context.Context, name string, blob []byte) (string, error)
}

// ClientDeleter removes a client account and everything the catalog hangs
// off it (favorites, notifications).
type ClientDeleter interface {
	DeleteClient(ctx context.Context, principalID string) (bool, error)
}

// CompanyDeleter removes a company and cascades to its offers, coupons,
// bulletins, branches and uploaded assets.
type CompanyDeleter interface {
	DeleteCompany(ctx context.Context, companyID string) (bool, error)
}

// FileStoreFunc adapts a function to the FileStore interface.
type FileStoreFunc func(ctx context.Context, name string, blob []byte) (string, error)

func (f FileStoreFunc) Store(ctx context.Context, name string, blob []byte) (string, error) {
	return f(ctx, name, blob)
}

// ClientDeleterFunc adapts a function to the ClientDeleter interface.
type ClientDeleterFunc func(ctx context.Context, principalID string) (bool, error)

func (f ClientDeleterFunc) DeleteClient(ctx context.Context, principalID string) (bool, error) {
	return f(ctx, principalID)
}

// CompanyDeleterFunc adapts a function to the CompanyDeleter interface.
type CompanyDeleterFunc func(ctx context.Context, companyID string) (bool, error)

func (f CompanyDeleterFunc) DeleteCompany(ctx context.Context, companyID string) (bool, error) {
	return f(ctx, companyID)
}

package journal

import (
	"errors"
	"fmt"

	"github.com/mbrock/sdreader/pkg/catalog"
)

// Catalog returns the catalog text for the current entry's MESSAGE_ID with
// @FIELD@ placeholders filled in from the entry.
func (r *Reader) Catalog() (string, error) {
	if err := r.check("catalog"); err != nil {
		return "", err
	}
	idBytes, err := r.Get("MESSAGE_ID")
	if errors.Is(err, ErrNoEntry) {
		return "", err
	}
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("catalog: %w", ErrNoMessageID)
	}
	if err != nil {
		return "", err
	}

	text, err := r.lookupCatalog(string(idBytes))
	if err != nil {
		return "", err
	}
	return catalog.Substitute(text, func(name string) ([]byte, bool) {
		v, err := r.Get(name)
		return v, err == nil
	}), nil
}

func (r *Reader) lookupCatalog(messageID string) (string, error) {
	cat := r.cat
	if cat == nil {
		var err error
		if cat, err = catalog.Default(); err != nil {
			return "", translate("load catalog", err)
		}
	}
	id, err := catalog.ParseID(messageID)
	if err != nil {
		return "", &CatalogKeyError{MessageID: messageID}
	}
	text, err := cat.Lookup(id)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", &CatalogKeyError{MessageID: messageID}
	}
	return text, err
}

// ResolveCatalog returns the unsubstituted catalog text for a message id
// given as 32 hex digits or in UUID form, from the system catalog.
func ResolveCatalog(id string) (string, error) {
	return ResolveCatalogIn(nil, id)
}

// ResolveCatalogIn is ResolveCatalog against cat; nil means the system
// catalog.
func ResolveCatalogIn(cat *catalog.Catalog, id string) (string, error) {
	mid, err := catalog.ParseID(id)
	if err != nil {
		return "", fmt.Errorf("resolve catalog: %w: %w", ErrInvalidArgument, err)
	}
	if cat == nil {
		if cat, err = catalog.Default(); err != nil {
			return "", translate("load catalog", err)
		}
	}
	text, err := cat.Lookup(mid)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", &CatalogKeyError{MessageID: catalog.FormatID(mid)}
	}
	return text, err
}

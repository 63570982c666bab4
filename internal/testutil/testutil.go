// Package testutil provides shared test helpers for setting up workspaces,
// catalogs and services.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/nbserde/internal/index"
	"github.com/starford/nbserde/internal/nbservice"
	"github.com/starford/nbserde/internal/notebook"
	"github.com/starford/nbserde/internal/storage"
)

// SampleNotebook is a small stored notebook with a markdown and a code cell.
const SampleNotebook = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": [
    "# Revenue\n",
    "Quarterly totals"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": 1,
   "metadata": {},
   "outputs": [],
   "source": [
    "revenue = sum(sales)"
   ]
  }
 ],
 "metadata": {
  "kernelspec": {
   "language": "python",
   "name": "python3"
  },
  "orig_nbformat": 4
 },
 "nbformat": 4,
 "nbformat_minor": 2
}
`

// TestDB creates a temporary SQLite catalog that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "nbserde-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a storage.Provider.
func TestWorkspace(t *testing.T) (string, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// TestService wires a service over a fresh workspace and catalog.
func TestService(t *testing.T, opts ...notebook.Option) (*nbservice.Service, storage.Provider, *index.DB) {
	t.Helper()
	_, store := TestWorkspace(t)
	db := TestDB(t)
	return nbservice.NewService(store, db, notebook.New(opts...)), store, db
}

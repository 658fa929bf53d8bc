// Package all wires all built-in store backends into the store factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the store package.
//
// In other words, importing this package makes the following store kinds
// available at runtime:
//
//   - "sqlite"   (internal/store/sqlite)
//   - "postgres" (internal/store/postgres)
//   - "mssql"    (internal/store/mssql)
//
// Typical usage (in cmd/dedupe/main.go or a similar wiring layer):
//
//	package main
//
//	import (
//	    "context"
//
//	    _ "github.com/torqspark/dedupe-massive-wordlists/internal/store/all" // enable all built-in backends
//
//	    "github.com/torqspark/dedupe-massive-wordlists/internal/store"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    st, err := store.New(ctx, store.Config{
//	        Kind:  "sqlite",
//	        DSN:   "dedupe_cache.db",
//	        Table: "lines",
//	    })
//	    if err != nil {
//	        // handle error
//	    }
//	    defer st.Close()
//
//	    // From this point on, the caller stays fully backend-agnostic.
//	}
//
// This pattern keeps backend-specific wiring in a single, small package and
// allows the rest of the application to depend only on the store abstraction
// rather than individual backends.
package all

import (
	_ "github.com/torqspark/dedupe-massive-wordlists/internal/store/mssql"
	_ "github.com/torqspark/dedupe-massive-wordlists/internal/store/postgres"
	_ "github.com/torqspark/dedupe-massive-wordlists/internal/store/sqlite"
)

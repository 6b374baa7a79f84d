// Package cli implements the mesauthz command-line tool for inspecting the
// permission catalog and answering authorization questions offline.
//
// # Commands
//
// catalog / presets: print the compiled-in catalogs
//
//	mesauthz catalog
//	mesauthz presets --json
//
// validate: assert catalog consistency and check a snapshot file
//
//	mesauthz validate --file users.yaml
//
// migrate: create the snapshot tables and seed the preset roles
//
//	mesauthz migrate --driver postgres --dsn "postgres://localhost/mes?sslmode=disable"
//
// check / scope / profile: evaluate one user from a file or database
//
//	mesauthz check --file users.yaml --user lena --action authorize --subject Run --line L1
//	mesauthz scope --dsn file:mes.db --user otto --permission exec:track_in
//	mesauthz profile --file users.yaml --user lena
//
// home: resolve a landing page without any snapshot
//
//	mesauthz home --roles operator,leader
package cli

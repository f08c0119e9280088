package main

import (
	"log"
	"os"

	"smartattendance/internal/config"
	"smartattendance/internal/store"
)

func main() {
	cfg := config.Load()
	root := newRootCmd(cfg, func() (store.Store, error) { return store.OpenShared(cfg) })
	if err := root.Execute(); err != nil {
		log.SetFlags(0)
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

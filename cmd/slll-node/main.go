// SLLL node agent.
// Wires config, keystore, optional persistence, and a radio backend
// into a running Transceiver, generalizing the teacher's
// cmd/agsys-controller entry point (same cobra root/run/version
// layout, same config-path flag, same SIGINT/SIGTERM shutdown) from
// the agricultural controller domain to the SLLL link layer.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loraguard/slll/internal/config"
	"github.com/loraguard/slll/internal/keystore"
	"github.com/loraguard/slll/internal/radio"
	"github.com/loraguard/slll/internal/radio/ipcradio"
	"github.com/loraguard/slll/internal/radio/loopback"
	"github.com/loraguard/slll/internal/store"
	"github.com/loraguard/slll/internal/transceiver"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "slll-node",
		Short: "Secure LoRa Link Layer node agent",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the node's transceiver until interrupted",
		RunE:  runNode,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("slll-node v0.1.0")
		},
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Print a random 16-byte AES key as hex",
		RunE:  runKeygen,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/slll/node.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	fmt.Println(hex.EncodeToString(key))
	return nil
}

func runNode(cmd *cobra.Command, args []string) error {
	runID := uuid.New()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	senderID, err := cfg.SenderID()
	if err != nil {
		return err
	}

	keys, err := cfg.ParsedKeys()
	if err != nil {
		return err
	}
	ks := keystore.New()
	for id, key := range keys {
		if err := ks.Add(id, key); err != nil {
			return fmt.Errorf("load key for %#08x: %w", id, err)
		}
	}

	var persist transceiver.CounterStore
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		persist = db
	}

	r, closeRadio, err := buildRadio(cfg)
	if err != nil {
		return fmt.Errorf("build radio: %w", err)
	}
	defer closeRadio()

	discoveryInterval := cfg.DiscoveryInterval()

	tr, err := transceiver.New(transceiver.Config{
		SenderID:          senderID,
		Radio:             r,
		KeyStore:          ks,
		DiscoveryInterval: discoveryInterval,
		Debug:             cfg.Logging.Debug,
		Store:             persist,
	})
	if err != nil {
		return fmt.Errorf("start transceiver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("slll-node [run=%s] started, sender_id=%#08x, radio=%s", runID, senderID, cfg.Radio.Kind)

	go applicationLoop(ctx, tr, runID.String())

	sig := <-sigChan
	log.Printf("slll-node [run=%s] received signal %v, shutting down", runID, sig)
	tr.Stop()
	log.Printf("slll-node [run=%s] shutdown complete", runID)
	return nil
}

// applicationLoop drains delivered application packets and logs them.
// A real deployment would hand these to whatever consumes SLLL
// traffic; this agent's job ends at delivering authenticated,
// decrypted, replay-checked payloads.
func applicationLoop(ctx context.Context, tr *transceiver.Transceiver, runID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d, err := tr.Receive(500 * time.Millisecond)
		if err != nil {
			log.Printf("slll-node [run=%s] receive error: %v", runID, err)
			continue
		}
		if d == nil {
			continue
		}
		log.Printf("slll-node [run=%s] delivered %s from %#08x (%d bytes)", runID, d.Kind, d.SenderID, len(d.Payload))
	}
}

func buildRadio(cfg *config.Config) (radio.Radio, func(), error) {
	switch cfg.Radio.Kind {
	case "ipc":
		r, err := ipcradio.New(ipcradio.Config{
			PublishEndpoint: cfg.Radio.PublishEndpoint,
			PeerEndpoints:   cfg.Radio.PeerEndpoints,
			Frequency:       cfg.Radio.Frequency,
			SpreadingFactor: cfg.Radio.SpreadingFactor,
			Bandwidth:       cfg.Radio.Bandwidth,
			CodingRate:      cfg.Radio.CodingRate,
			TxPower:         cfg.Radio.TxPower,
			SyncWord:        cfg.Radio.SyncWord,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	default: // "loopback" or unset: single-process in-memory medium
		board := loopback.NewSwitchboard()
		r := loopback.New(board)
		return r, func() { r.Close() }, nil
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"otpgate/internal/apphash"
	"otpgate/internal/config"
	"otpgate/internal/listener"
	"otpgate/internal/otp"
	"otpgate/internal/pipeline"
	"otpgate/internal/receivers"
	gmailreceiver "otpgate/internal/receivers/gmail"
	imapreceiver "otpgate/internal/receivers/imap"
	"otpgate/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		length := fs.Int("length", cfg.CodeLength, "exact digit count of the code")
		rulesFile := fs.String("rules", cfg.RulesFile, "optional YAML rules file")
		input := fs.String("input", "", "message body; reads stdin when empty")
		_ = fs.Parse(os.Args[2:])

		body := *input
		if body == "" {
			blob, err := io.ReadAll(os.Stdin)
			must(err)
			body = string(blob)
		}

		extractor, err := pipeline.NewExtractorFromConfig(config.Config{CodeLength: *length, RulesFile: *rulesFile})
		must(err)
		res, err := extractor.Extract(body)
		if errors.Is(err, otp.ErrNotFound) {
			fmt.Println("not found")
			os.Exit(2)
		}
		must(err)
		fmt.Printf("%s (rule=%s)\n", res.Code, res.Rule)
	case "apphash":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pkg := fs.String("package", cfg.AppPackage, "application package name")
		cert := fs.String("cert", cfg.AppCertHash, "signing certificate hash")
		_ = fs.Parse(os.Args[2:])
		hash, err := apphash.Compute(*pkg, *cert)
		must(err)
		fmt.Println(hash)
	case "sms:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.ListenerProvider, "imap|gmail")
		label := fs.String("label", cfg.ListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg)
		defer db.Close()
		receiver, err := makeReceiver(cfg, *provider)
		must(err)
		fetch := receivers.NewFetchService(db, cfg.RawMsgDir, receiver)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("sms fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "sms:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "filter by provider")
		messageID := fs.String("messageId", "", "specific provider message id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])

		db := openDB(cfg)
		defer db.Close()
		processor, err := pipeline.NewProcessingService(db, cfg)
		must(err)
		if strings.TrimSpace(*messageID) != "" {
			if strings.TrimSpace(*provider) == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			if res.Code != "" {
				fmt.Printf("processed message id=%d code=%s rule=%s\n", res.MessageID, res.Code, res.Rule)
			} else {
				fmt.Printf("processed message id=%d status=%s\n", res.MessageID, res.Status)
			}
			return
		}
		processed, found, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending messages=%d codes=%d\n", processed, found)
	case "sms:listen":
		db := openDB(cfg)
		defer db.Close()
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		limit := fs.Int("limit", 500, "max rows")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}

		db := openDB(cfg)
		defer db.Close()
		rows, err := db.GetAuditRows(*limit)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no messages to export"))
		}
		must(pipeline.ExportAuditToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func openDB(cfg config.Config) *storage.DB {
	db, err := storage.Open(cfg.DBPath)
	must(err)
	return db
}

func makeReceiver(cfg config.Config, provider string) (receivers.Receiver, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailreceiver.NewReceiver(cfg)
	case "imap":
		return imapreceiver.NewReceiver(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: otpgate <command>")
	fmt.Println("commands:")
	fmt.Println("  extract [--input=...] [--length=4] [--rules=rules.yaml]")
	fmt.Println("  apphash --package=com.example.app --cert=ab:cd:...")
	fmt.Println("  sms:fetch --provider=imap|gmail --label=INBOX --max=50")
	fmt.Println("  sms:process [--provider=...] [--messageId=...] [--batch=20]")
	fmt.Println("  sms:listen")
	fmt.Println("  export:xlsx --out=./out/audit.xlsx [--limit=500]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

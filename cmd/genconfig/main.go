// Command genconfig writes an example configuration file with every
// setting at its default and secrets left as placeholders.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/opendots/opendots-backend/config"
	"gopkg.in/yaml.v3"
)

const placeholder = "<set me>"

func main() {
	out := flag.String("out", "", "Output file (default stdout)")
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := write(w); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
}

func write(w io.Writer) error {
	cfg, err := exampleConfig()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "# Example configuration. Each setting can be supplied through the\n# environment instead, e.g. SUPABASE_ANON_KEY or D1_DATABASE_ID.\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func exampleConfig() (*config.Config, error) {
	cfg, err := config.Defaults()
	if err != nil {
		return nil, err
	}
	cfg.Database.Password = placeholder
	cfg.Supabase.URL = "https://<project>.supabase.co"
	cfg.Supabase.AnonKey = placeholder
	cfg.Supabase.ServiceKey = placeholder
	cfg.Supabase.JWTSecret = placeholder
	cfg.Cloudflare.AccountID = placeholder
	cfg.Cloudflare.APIToken = placeholder
	cfg.Cloudflare.D1DatabaseID = placeholder
	cfg.Cloudflare.R2AccessKeyID = placeholder
	cfg.Cloudflare.R2SecretAccessKey = placeholder
	return cfg, nil
}

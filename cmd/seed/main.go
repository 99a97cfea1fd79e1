// Command seed writes a form configuration into the key-value store used by
// the intake API. The file may be YAML or JSON; it is normalized exactly as at
// request time before anything is written.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sngm3741/form-intake/api/internal/config"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/server"
	"gopkg.in/yaml.v3"
)

type seedOptions struct {
	envName string
	file    string
	name    string
	dryRun  bool
}

func main() {
	opts := parseFlags()

	if err := loadEnvFiles(opts.envName); err != nil {
		log.Fatalf("環境変数の読み込みに失敗しました: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	name := firstNonEmpty(opts.name, cfg.EmailConfig)
	if name == "" {
		log.Fatal("-name か EMAIL_CONFIG で設定名を指定してください")
	}

	raw, err := decodeConfigFile(opts.file)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
	}
	form, err := domain.ParseFormConfig(raw)
	if err != nil {
		log.Fatalf("設定ファイルが不正です: %v", err)
	}
	log.Printf("設定を検証しました: name=%s prefix=%s fields=%s", name, form.Prefix, strings.Join(form.Fields, ","))

	if opts.dryRun {
		fmt.Println(string(raw))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("KV ストア接続に失敗しました: %v", err)
	}
	defer func() {
		_ = store.Close(context.Background())
	}()

	if err := kv.NewConfigRepository(store).Save(ctx, name, raw); err != nil {
		log.Fatalf("設定の保存に失敗しました: %v", err)
	}
	log.Printf("Seed 完了: name=%s driver=%s (env=%s)", name, cfg.Store.Driver, opts.envName)
}

func parseFlags() seedOptions {
	var opts seedOptions
	flag.StringVar(&opts.envName, "env", "local", "backend/env 内の env ファイル名 (例: local, staging)")
	flag.StringVar(&opts.file, "file", "form.yaml", "投入するフォーム設定ファイル (YAML または JSON)")
	flag.StringVar(&opts.name, "name", "", "保存先の設定名 (省略時は EMAIL_CONFIG)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "検証のみ行い、変換後の JSON を出力する")
	flag.Parse()

	if strings.TrimSpace(opts.file) == "" {
		log.Fatal("-file を指定してください")
	}
	return opts
}

// loadEnvFiles reads ../env/shared.env and ../env/<name>.env when present.
func loadEnvFiles(envName string) error {
	base := filepath.Clean(filepath.Join("..", "env"))
	files := []string{
		filepath.Join(base, "shared.env"),
		filepath.Join(base, fmt.Sprintf("%s.env", envName)),
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s の読み込みに失敗しました: %w", file, err)
		}
	}
	return nil
}

// decodeConfigFile returns the configuration as JSON, converting YAML input.
func decodeConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s is not valid JSON", path)
		}
		return data, nil
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if _, ok := doc.(map[string]any); !ok {
			return nil, fmt.Errorf("%s must contain a mapping at the top level", path)
		}
		return json.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/migration"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// seedFile lists actors to upsert, e.g. mirrored from the account service
type seedFile struct {
	Actors []struct {
		ID          string  `yaml:"id"`
		Kind        string  `yaml:"kind"`
		DisplayName string  `yaml:"display_name"`
		AvatarURL   string  `yaml:"avatar_url"`
		OwnerUserID *string `yaml:"owner_user_id"`
	} `yaml:"actors"`
}

func main() {
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seedPath := flag.String("seed-file", "", "YAML file of actors to upsert after migrating")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	files := config.LoadDotEnv()
	if len(files) == 0 {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema is up to date")

	if *seedPath == "" {
		return
	}
	actors, err := loadSeed(*seedPath)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}
	n, err := migration.SeedActors(db, actors)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d actors", n)
}

func loadSeed(path string) ([]domain.Actor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	actors := make([]domain.Actor, 0, len(f.Actors))
	for i, a := range f.Actors {
		kind := domain.ActorKind(a.Kind)
		if kind == "" {
			kind = domain.ActorKindUser
		}
		if a.ID == "" || (kind != domain.ActorKindUser && kind != domain.ActorKindVport) {
			return nil, fmt.Errorf("actor #%d: id and a kind of user or vport are required", i+1)
		}
		if kind == domain.ActorKindVport && a.OwnerUserID == nil {
			return nil, fmt.Errorf("actor %s: vport needs owner_user_id", a.ID)
		}
		actors = append(actors, domain.Actor{
			ID:          a.ID,
			Kind:        kind,
			DisplayName: a.DisplayName,
			AvatarURL:   a.AvatarURL,
			OwnerUserID: a.OwnerUserID,
		})
	}
	return actors, nil
}

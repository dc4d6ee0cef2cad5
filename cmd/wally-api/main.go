package main

import (
	"context"
	"log"
	"net/http"

	"github.com/wallybot/wally-agent/internal/adapters/appium"
	httpadapter "github.com/wallybot/wally-agent/internal/adapters/http"
	"github.com/wallybot/wally-agent/internal/adapters/llm"
	firestorestore "github.com/wallybot/wally-agent/internal/adapters/storage/firestore"
	"github.com/wallybot/wally-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/wallybot/wally-agent/internal/adapters/storage/sqlite"
	"github.com/wallybot/wally-agent/internal/app/automation"
	"github.com/wallybot/wally-agent/internal/app/command"
	"github.com/wallybot/wally-agent/internal/app/intent"
	"github.com/wallybot/wally-agent/internal/config"
	"github.com/wallybot/wally-agent/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Intent model + transcriber: Gemini, or deterministic mocks for dev.
	var (
		intentModel domain.IntentModel
		transcriber domain.Transcriber
	)
	if cfg.UseMockLLM {
		log.Println("[LLM] Using mock model (fallback parser only)")
		intentModel = llm.NewMockModel()
		transcriber = llm.NewMockTranscriber("add milk and eggs")
	} else {
		log.Printf("[LLM] Using Gemini via Vertex AI (project=%s model=%s)", cfg.GCPProjectID, cfg.ModelName)
		gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
		intentModel = gemini
		transcriber = gemini
	}

	// Order history: memory, sqlite or firestore.
	var orders domain.OrderStore
	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}
		defer fsStore.Close()
		orders = fsStore

	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (%s)", cfg.SQLitePath)
		sqlStore, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error opening SQLite store: %v", err)
		}
		defer sqlStore.Close()
		orders = sqlStore

	default:
		log.Println("[STORE] Using in-memory storage")
		orders = memory.NewOrderStore()
	}

	// Device automation: selector map + Appium driver + exclusive manager.
	selectors, err := automation.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		log.Fatalf("error loading selectors: %v", err)
	}
	device := appium.NewClient(appium.Config{
		ServerURL: cfg.AppiumServerURL,
		UDID:      cfg.DeviceUDID,
	})
	sessions := automation.NewManager(device, selectors, cfg.AppPackage, cfg.UIWaitTimeout)

	resolver := intent.NewResolver(intentModel)
	commands := command.NewService(transcriber, resolver, orders, sessions)

	handler := httpadapter.NewServer(commands, transcriber, sessions)

	addr := ":" + cfg.Port
	log.Println("Wally API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"fmt"
	"log"

	"movie-chatbot/internal/agent"
	"movie-chatbot/internal/chatbot"
	"movie-chatbot/internal/config"
	"movie-chatbot/internal/llm"
	"movie-chatbot/internal/store"
	"movie-chatbot/internal/tools"
)

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return st, nil
}

// newAgent builds the tool-calling executor. search-movie is only offered
// when an OMDb key is configured.
func newAgent(cfg *config.Config) (*agent.Executor, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}

	client := llm.New(llm.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	}, nil)

	registry := tools.NewRegistry()
	if cfg.OMDb.APIKey != "" {
		registry.Register(tools.NewSearchMovie(cfg.OMDb.APIKey, cfg.OMDb.BaseURL))
	} else {
		log.Printf("OMDB_API_KEY not set, %s tool disabled", tools.SearchMovieName)
	}

	return agent.NewExecutor(client, registry, agent.ExecutorOptions{
		MaxToolRounds:      cfg.AgentMaxToolRounds,
		HistoryTokenBudget: cfg.HistoryTokenBudget,
		CountTokens:        agent.TokenCounterOrEstimate(cfg.OpenAI.Model),
	}), nil
}

func newChatbot(cfg *config.Config, st store.Store) (*chatbot.Service, error) {
	ag, err := newAgent(cfg)
	if err != nil {
		return nil, err
	}
	return chatbot.NewService(st, ag, chatbot.Options{
		StreamTimeout:  cfg.StreamTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}), nil
}

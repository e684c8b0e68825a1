package main

import (
	"context"
	"flag"
	"time"

	"seatkeeper/internal/logger"
	"seatkeeper/internal/validation"
)

func main() {
	var (
		baseURL    string
		capacity   int
		contenders int
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.IntVar(&capacity, "seats", 5, "Seats on the validation event")
	flag.IntVar(&contenders, "requesters", 40, "Concurrent requesters")
	flag.Parse()

	logger.Init("info", "text")
	logger.Get().Info("Starting invariant validation", "url", baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	validator := validation.NewInvariantValidator(baseURL).WithLoad(capacity, contenders)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("❌ Валидация не пройдена", "error", err)
	}

	logger.Get().Info("✅ Валидация успешно пройдена!")
}

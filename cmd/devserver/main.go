package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quizlink/quizlink-client/internal/config"
	"github.com/quizlink/quizlink-client/internal/devserver"
	"github.com/quizlink/quizlink-client/internal/engine"
)

// Canned question script so the stub server is playable without any
// authoring backend.
var script = []engine.Question{
	{
		ID: "q1", Text: "What is the capital of France?", Number: 1,
		Options: map[string]string{"A": "Paris", "B": "Lyon", "C": "Marseille", "D": "Nice"},
		Answer:  "A",
	},
	{
		ID: "q2", Text: "Which planet is known as the Red Planet?", Number: 2,
		Options: map[string]string{"A": "Venus", "B": "Mars", "C": "Jupiter", "D": "Saturn"},
		Answer:  "B",
	},
	{
		ID: "q3", Text: "What is the largest ocean on Earth?", Number: 3,
		Options: map[string]string{"A": "Atlantic", "B": "Indian", "C": "Pacific", "D": "Arctic"},
		Answer:  "C",
	},
	{
		ID: "q4", Text: "Who wrote 'Romeo and Juliet'?", Number: 4,
		Options: map[string]string{"A": "Dickens", "B": "Austen", "C": "Tolstoy", "D": "Shakespeare"},
		Answer:  "D",
	},
	{
		ID: "q5", Text: "What gas do plants absorb from the air?", Number: 5,
		Options: map[string]string{"A": "Carbon dioxide", "B": "Oxygen", "C": "Nitrogen", "D": "Helium"},
		Answer:  "A",
	},
}

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	cfg := config.Load()
	srv := devserver.New(log)

	// After initiate, walk the script: one question per intro+open window,
	// then announce whoever answered the most questions correctly.
	srv.OnInitiate = func(gameID string) {
		interval := cfg.Timings.Intro + cfg.Timings.Open + time.Second
		log.Info("game initiated", zap.String("game_id", gameID))
		for i := range script {
			q := script[i]
			q.Total = len(script)
			srv.PushQuestion(gameID, q)
			time.Sleep(interval)
		}
		srv.EndGame(gameID, topScorer(srv.Answers(gameID)))
	}

	log.Info("devserver listening on :8080")
	if err := http.ListenAndServe(":8080", srv.Handler()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func topScorer(answers []engine.Answer) string {
	correct := make(map[string]int)
	winner := ""
	for _, a := range answers {
		if !a.Correct {
			continue
		}
		correct[a.PlayerID]++
		if winner == "" || correct[a.PlayerID] > correct[winner] {
			winner = a.PlayerID
		}
	}
	return winner
}

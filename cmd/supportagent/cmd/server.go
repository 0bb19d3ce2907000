package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/habiliai/supportagent"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/memory"
)

const (
	FrameChunk = "chunk"
	FrameFinal = "final"
	FrameError = "error"
)

type (
	CreateThreadRequest struct {
		UserID string `json:"user_id"`
	}

	CreateThreadResponse struct {
		ThreadID string `json:"thread_id"`
	}

	ChatRequest struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}

	ChatResponse struct {
		Answer     string `json:"answer"`
		Streamed   bool   `json:"streamed"`
		ToolRounds int    `json:"tool_rounds"`
	}

	AddMemoryRequest struct {
		UserID     string            `json:"user_id"`
		Content    string            `json:"content"`
		Importance memory.Importance `json:"importance"`
	}

	SearchMemoryRequest struct {
		Query               string   `json:"query"`
		TopK                *int     `json:"top_k"`
		SimilarityThreshold *float64 `json:"similarity_threshold"`
	}

	// StreamFrame is one websocket message sent by /threads/{id}/stream.
	// Chunk frames carry only the text after the final answer marker; the
	// final frame always carries the complete cleaned answer.
	StreamFrame struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	default:
		logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(errors.ErrInvalidParams, "invalid request body: %v", err)
	}
	return nil
}

func createThreadsRouter(router *mux.Router, sa *supportagent.SupportAgent, logger *slog.Logger) {
	router.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		var req CreateThreadRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		thread, err := sa.NewThread(r.Context(), req.UserID)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, CreateThreadResponse{ThreadID: thread.ID})
	}).Methods("POST")

	router.HandleFunc("/threads", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, logger, errors.Wrapf(errors.ErrInvalidParams, "invalid limit %q", v))
				return
			}
			limit = n
		}

		threads, err := sa.Threads().List(r.Context(), limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, threads)
	}).Methods("GET")

	router.HandleFunc("/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		messages, err := sa.Messages(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, messages)
	}).Methods("GET")

	router.HandleFunc("/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		res, err := sa.Chat(r.Context(), mux.Vars(r)["id"], req.UserID, req.Message)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{
			Answer:     res.Answer,
			Streamed:   res.Streamed,
			ToolRounds: res.ToolRounds,
		})
	}).Methods("POST")

	router.HandleFunc("/threads/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		threadID := mux.Vars(r)["id"]

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade websocket", "thread_id", threadID, "error", err)
			return
		}
		defer conn.Close()

		for {
			var req ChatRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("websocket closed", "thread_id", threadID, "error", err)
				}
				return
			}

			filter := &answerFilter{emit: func(text string) error {
				return conn.WriteJSON(StreamFrame{Type: FrameChunk, Text: text})
			}}
			res, err := sa.ChatStream(r.Context(), threadID, req.UserID, req.Message, filter.write)
			frame := StreamFrame{Type: FrameError}
			if err != nil {
				frame.Text = err.Error()
			} else {
				frame = StreamFrame{Type: FrameFinal, Text: res.Answer}
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug("failed to write websocket frame", "thread_id", threadID, "error", err)
				return
			}
		}
	}).Methods("GET")
}

func createMemoriesRouter(router *mux.Router, sa *supportagent.SupportAgent, logger *slog.Logger) {
	defaults := sa.Config().Memory.API

	router.HandleFunc("/memories", func(w http.ResponseWriter, r *http.Request) {
		var req AddMemoryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		m, err := sa.Memory().Store(r.Context(), req.UserID, req.Content, req.Importance)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, m)
	}).Methods("POST")

	router.HandleFunc("/memories/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		memories, err := sa.Memory().List(r.Context(), mux.Vars(r)["user_id"])
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, memories)
	}).Methods("GET")

	router.HandleFunc("/memories/{user_id}/search", func(w http.ResponseWriter, r *http.Request) {
		var req SearchMemoryRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		topK, threshold := defaults.TopK, defaults.Threshold
		if req.TopK != nil {
			topK = *req.TopK
		}
		if req.SimilarityThreshold != nil {
			threshold = *req.SimilarityThreshold
		}

		results, err := sa.Memory().Search(r.Context(), mux.Vars(r)["user_id"], req.Query, topK, threshold)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, results)
	}).Methods("POST")
}

// NewServerHandler returns the HTTP API of sa with CORS and panic recovery.
func NewServerHandler(sa *supportagent.SupportAgent) http.Handler {
	logger := sa.Logger()

	router := mux.NewRouter()
	createThreadsRouter(router, sa, logger)
	createMemoriesRouter(router, sa, logger)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true), handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		router.ServeHTTP(w, r.WithContext(ctx))
	})

	return cors(recovery(handler))
}

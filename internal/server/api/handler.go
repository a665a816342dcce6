// Package api is the HTTP surface of lexisync: a single POST /api endpoint
// that dispatches on the "action" field of the JSON body, plus health,
// metrics and optional static file routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/merge"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
	"github.com/dmitrijs2005/lexisync/internal/server/upstream"
	"github.com/dmitrijs2005/lexisync/internal/validatex"
	"github.com/gin-gonic/gin"
)

const (
	maxBodyBytes = 10 << 20
	audioCache   = "public, max-age=86400"
)

// Accounts registers users and checks credentials.
type Accounts interface {
	Register(ctx context.Context, username, password string) (*models.UserRecord, error)
	Login(ctx context.Context, username, password string) (*models.UserRecord, error)
}

// Syncer loads and merges data bundles.
type Syncer interface {
	Load(ctx context.Context, username string) (*models.DataBundle, error)
	Merge(ctx context.Context, username string, client *models.DataBundle) (*models.DataBundle, merge.Report, error)
}

type Generator interface {
	Generate(ctx context.Context, in upstream.GenerateRequest) (*upstream.GenerateResponse, error)
}

type Dictionary interface {
	Lookup(ctx context.Context, word, lang string) (json.RawMessage, error)
}

type Translator interface {
	Translate(ctx context.Context, text, from, to string) (*upstream.Translation, error)
}

type AudioSource interface {
	Fetch(ctx context.Context, rawURL string) (*upstream.Audio, error)
}

// actionFunc handles one action. payload is the full request body.
type actionFunc func(c *gin.Context, payload []byte) error

// Handler dispatches POST /api requests by action.
type Handler struct {
	users      Accounts
	sync       Syncer
	llm        Generator
	dictionary Dictionary
	translator Translator
	audio      AudioSource
	logger     logging.Logger
	now        func() time.Time
	actions    map[string]actionFunc
}

func NewHandler(users Accounts, sync Syncer, llm Generator, dictionary Dictionary, translator Translator, audio AudioSource, logger logging.Logger) *Handler {
	h := &Handler{
		users:      users,
		sync:       sync,
		llm:        llm,
		dictionary: dictionary,
		translator: translator,
		audio:      audio,
		logger:     logger,
		now:        time.Now,
	}
	h.actions = map[string]actionFunc{
		"ping":              h.ping,
		"generate":          h.generate,
		"dictionary-lookup": h.dictionaryLookup,
		"translate-lookup":  h.translateLookup,
		"fetch-audio":       h.fetchAudio,
		"auth-register":     h.register,
		"auth-login":        h.login,
		"sync-load":         h.syncLoad,
		"sync-merge":        h.syncMerge,
	}
	return h
}

// Dispatch reads the body, picks the handler named by its action field and
// converts any returned error into a JSON error response.
func (h *Handler) Dispatch(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.writeError(c, common.NewValidationError("body", "could not be read"))
		return
	}

	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.writeError(c, common.NewValidationError("body", "must be a JSON object"))
		return
	}

	action, ok := h.actions[envelope.Action]
	if !ok {
		h.writeError(c, common.NewValidationError("action", fmt.Sprintf("unknown action %q", envelope.Action)))
		return
	}
	c.Set(actionKey, envelope.Action)

	if err := action(c, body); err != nil {
		h.writeError(c, err)
	}
}

// decode unmarshals payload into dst and validates its tags.
func decode(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return common.NewValidationError(typeErr.Field, "has the wrong type")
		}
		return common.NewValidationError("body", err.Error())
	}
	return validatex.ValidateStruct(dst)
}

func (h *Handler) ping(c *gin.Context, _ []byte) error {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": h.now().UTC().Format(time.RFC3339)})
	return nil
}

func (h *Handler) generate(c *gin.Context, payload []byte) error {
	var in upstream.GenerateRequest
	if err := decode(payload, &in); err != nil {
		return err
	}
	out, err := h.llm.Generate(c.Request.Context(), in)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, out)
	return nil
}

type dictionaryPayload struct {
	Word string `json:"word" validate:"required"`
	Lang string `json:"lang"`
}

func (h *Handler) dictionaryLookup(c *gin.Context, payload []byte) error {
	var in dictionaryPayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	entries, err := h.dictionary.Lookup(c.Request.Context(), in.Word, in.Lang)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"word": in.Word, "entries": entries})
	return nil
}

type translatePayload struct {
	Text string `json:"text" validate:"required"`
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) translateLookup(c *gin.Context, payload []byte) error {
	var in translatePayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	out, err := h.translator.Translate(c.Request.Context(), in.Text, in.From, in.To)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, out)
	return nil
}

type audioPayload struct {
	URL string `json:"url" validate:"required"`
}

func (h *Handler) fetchAudio(c *gin.Context, payload []byte) error {
	var in audioPayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	audio, err := h.audio.Fetch(c.Request.Context(), in.URL)
	if err != nil {
		return err
	}
	defer audio.Body.Close()

	c.DataFromReader(http.StatusOK, audio.ContentLength, audio.ContentType, audio.Body, map[string]string{
		"Cache-Control": audioCache,
	})
	return nil
}

type credentialsPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) register(c *gin.Context, payload []byte) error {
	var in credentialsPayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	rec, err := h.users.Register(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "username": rec.Username})
	return nil
}

func (h *Handler) login(c *gin.Context, payload []byte) error {
	var in credentialsPayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	rec, err := h.users.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		return err
	}
	var data *models.DataBundle
	if rec.Data != nil {
		data = rec.Data.Normalize()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "username": rec.Username, "data": data})
	return nil
}

type syncLoadPayload struct {
	Username string `json:"username" validate:"required"`
}

func (h *Handler) syncLoad(c *gin.Context, payload []byte) error {
	var in syncLoadPayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	data, err := h.sync.Load(c.Request.Context(), in.Username)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
	return nil
}

type syncMergePayload struct {
	Username string             `json:"username" validate:"required"`
	Data     *models.DataBundle `json:"data" validate:"required"`
}

func (h *Handler) syncMerge(c *gin.Context, payload []byte) error {
	var in syncMergePayload
	if err := decode(payload, &in); err != nil {
		return err
	}
	merged, _, err := h.sync.Merge(c.Request.Context(), in.Username, in.Data)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, gin.H{"data": merged})
	return nil
}

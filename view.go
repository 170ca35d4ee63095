package main

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/notnon-video/catalog"
	"github.com/gosuda/notnon-video/player"
)

//go:embed static
var embeddedStatic embed.FS

const sessionCookie = "nv_session"

// videoJSON is a manifest record with its derived labels.
type videoJSON struct {
	catalog.Record
	Title     string `json:"title"`
	SizeLabel string `json:"sizeLabel"`
	DateLabel string `json:"dateLabel"`
}

type selectRequest struct {
	Index *int   `json:"index"`
	URL   string `json:"url"`
}

type eventResponse struct {
	View player.View `json:"view"`
	Ops  []player.Op `json:"ops"`
}

// NewHandler builds the router serving the page, the JSON API and the websocket.
// mediaDir, when set, is served for any path no route claims.
func NewHandler(name string, h *hub, mediaDir string) http.Handler {
	static, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s := sessionFor(w, r, h)
		data := struct {
			Name string
			View player.View
		}{Name: name, View: s.view()}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(w, data); err != nil {
			log.Error().Err(err).Msg("[video] render index")
		}
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", func(w http.ResponseWriter, r *http.Request) {
			set, loadErr := h.snapshot()
			cards := player.BuildCards(set, h.loc)
			videos := make([]videoJSON, len(set))
			for i, rec := range set {
				videos[i] = videoJSON{
					Record:    rec,
					Title:     cards[i].Filename,
					SizeLabel: cards[i].SizeLabel,
					DateLabel: cards[i].DateLabel,
				}
			}
			resp := struct {
				Videos    []videoJSON `json:"videos"`
				TotalSize string      `json:"totalSize"`
				Error     string      `json:"error,omitempty"`
			}{Videos: videos, TotalSize: player.MBLabel(catalog.TotalSizeMB(set))}
			if loadErr != nil {
				resp.Error = loadErr.Error()
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/view", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, sessionFor(w, r, h).view())
		})

		r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Query string `json:"query"`
			}
			if !readJSON(w, r, &req) {
				return
			}
			s := sessionFor(w, r, h)
			ops, view := h.apply(s, func(c *player.Controller) []player.Op { return c.Search(req.Query) })
			writeJSON(w, http.StatusOK, eventResponse{View: view, Ops: nonNil(ops)})
		})

		r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
			var req selectRequest
			if !readJSON(w, r, &req) {
				return
			}
			if req.Index == nil && req.URL == "" {
				http.Error(w, "index or url required", http.StatusBadRequest)
				return
			}
			s := sessionFor(w, r, h)
			ops, view := h.apply(s, func(c *player.Controller) []player.Op {
				if req.Index != nil {
					return c.Select(*req.Index)
				}
				return c.SelectURL(req.URL)
			})
			writeJSON(w, http.StatusOK, eventResponse{View: view, Ops: nonNil(ops)})
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			limit := 20
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = n
			}
			entries, err := h.history.Recent(limit)
			if err != nil {
				log.Warn().Err(err).Msg("[history] read failed")
				http.Error(w, "history unavailable", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, entries)
		})
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		h.handleWS(w, r, sessionFor(w, r, h))
	})

	if mediaDir != "" {
		r.NotFound(http.FileServer(http.Dir(mediaDir)).ServeHTTP)
	}
	return r
}

// sessionFor returns the caller's session, issuing a cookie for new ones.
func sessionFor(w http.ResponseWriter, r *http.Request, h *hub) *session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	s := h.session(id)
	if s.id != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(30 * 24 * time.Hour),
		})
	}
	return s
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("[video] write json")
	}
}

func nonNil(ops []player.Op) []player.Op {
	if ops == nil {
		return []player.Op{}
	}
	return ops
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>{{.Name}}</title>
  <link rel="stylesheet" href="/static/style.css" />
</head>
<body>
  <header class="header">
    <div class="logo"><span class="badge-dot"></span><span>{{.Name}}</span></div>
    <div class="stats">
      <span id="totalVideos">{{.View.TotalLabel}}</span>
      <span id="totalSize">{{.View.TotalSize}}</span>
    </div>
  </header>
  <main class="layout">
    <section class="player-section">
      <div class="player-card">
        <h2 id="nowPlayingTitle">{{.View.Title}}</h2>
        <div id="playerContainer">
          <div class="player-placeholder" id="playerPlaceholder"{{if eq .View.Surface.String "playing"}} style="display:none"{{end}}>
            <div class="player-placeholder-icon"></div>
            <div>Pick a video from the list to start watching.</div>
          </div>
          <video id="mainPlayer" controls preload="metadata"{{if ne .View.Surface.String "playing"}} style="display:none"{{end}}>
            <source id="mainSource" src="{{.View.Source}}" type="video/mp4" />
            Your browser does not support HTML5 video.
          </video>
        </div>
        <div class="player-meta">
          <span id="nowPlayingSize">{{.View.SizeLabel}}</span>
          <span id="nowPlayingDate">{{.View.DateLabel}}</span>
        </div>
      </div>
    </section>
    <section class="list-section">
      <div class="list-header">
        <h3>Videos <span class="pill-count" id="pillCount">{{.View.Count}}</span></h3>
        <input type="search" id="searchInput" placeholder="Search file name..." value="{{.View.Query}}" />
      </div>
      <div id="videoList" class="video-list">
        {{- range .View.Cards}}
        <div class="video-card{{if .IsActive}} active{{end}}" data-index="{{.Index}}" data-url="{{.URL}}"{{if .Hidden}} style="display:none"{{end}}>
          <div class="video-thumb"></div>
          <div class="video-info">
            <div class="video-title">{{.Filename}}</div>
            <div class="video-meta"><span>{{.SizeLabel}}</span><span>{{.DateLabel}}</span></div>
          </div>
        </div>
        {{- end}}
      </div>
      <div id="emptyState" class="empty-state"{{if not .View.EmptyState}} style="display:none"{{end}}>{{.View.EmptyMessage}}</div>
    </section>
  </main>
  <footer class="footer"><span>{{.Name}}</span></footer>
  <script src="/static/app.js"></script>
</body>
</html>`))

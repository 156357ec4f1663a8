package scoringhandlers

import "net/http"

// Handlers defines the HTTP handlers of the operator API.
type Handlers interface {
	ListCompetitions(w http.ResponseWriter, r *http.Request)
	CreateCompetition(w http.ResponseWriter, r *http.Request)
	GetCompetition(w http.ResponseWriter, r *http.Request)
	UpdateCompetition(w http.ResponseWriter, r *http.Request)
	DeleteCompetition(w http.ResponseWriter, r *http.Request)

	// ListTasks returns task views; ?competition_id= narrows the list.
	ListTasks(w http.ResponseWriter, r *http.Request)
	CreateTask(w http.ResponseWriter, r *http.Request)
	GetTask(w http.ResponseWriter, r *http.Request)
	UpdateTask(w http.ResponseWriter, r *http.Request)
	DeleteTask(w http.ResponseWriter, r *http.Request)

	ListPlayers(w http.ResponseWriter, r *http.Request)
	CreatePlayer(w http.ResponseWriter, r *http.Request)
	GetPlayer(w http.ResponseWriter, r *http.Request)
	UpdatePlayer(w http.ResponseWriter, r *http.Request)
	DeletePlayer(w http.ResponseWriter, r *http.Request)
	PlayerSolves(w http.ResponseWriter, r *http.Request)

	// SubmitFlag is rate limited per player.
	SubmitFlag(w http.ResponseWriter, r *http.Request)
	Scoreboard(w http.ResponseWriter, r *http.Request)

	// Events upgrades to a websocket carrying a snapshot followed by live events.
	Events(w http.ResponseWriter, r *http.Request)
}

package presence

// ServiceLastSeen is the request-reply service that looks up a username.
const ServiceLastSeen = "last-seen"

// LastSeenRequest asks for the presence of a username.
type LastSeenRequest struct {
	Username string `json:"username"`
}

// LastSeenResponse carries the record when one exists.
type LastSeenResponse struct {
	Found  bool   `json:"found"`
	Record Record `json:"record"`
}

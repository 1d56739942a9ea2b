package api

import "github.com/andydunstall/rumor/pkg/broadcast"

type BroadcastRequest struct {
	Message *broadcast.Value `json:"message"`
}

type ReadResponse struct {
	Messages []broadcast.Value `json:"messages"`
}

type TopologyRequest struct {
	Topology map[string][]string `json:"topology"`
}

type TopologyResponse struct {
	Neighbours []string `json:"neighbours"`
}

type GenerateResponse struct {
	ID uint64 `json:"id"`
}

type AddRequest struct {
	Delta uint64 `json:"delta"`
}

type CounterResponse struct {
	Value uint64 `json:"value"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

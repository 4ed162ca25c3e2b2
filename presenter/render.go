package presenter

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, res interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

package utils

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/exception"
)

func ParseId(param string, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameterValue,
			Message: exception.InvalidParameterValueMsg,
			Params:  map[string]interface{}{"param": param, "value": value},
		}
	}
	return id, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikeEscaped escapes LIKE wildcards so the value is matched literally.
func LikeEscaped(s string) string {
	return likeEscaper.Replace(s)
}

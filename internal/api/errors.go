package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"praxos/internal/contracts"
	"praxos/internal/metadata"
	"praxos/internal/strategy"
)

var registerOnce sync.Once

// registerValidation makes validation errors report json field names.
func registerValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
	})
}

func writeError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// writeReadError maps a chain or store read failure to a status code.
func writeReadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, contracts.ErrNoDeployment):
		writeError(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, metadata.ErrNotFound):
		writeError(c, http.StatusNotFound, errors.New("Vault metadata not found"))
	case errors.Is(err, strategy.ErrStrategyNotFound):
		writeError(c, http.StatusNotFound, err)
	default:
		writeError(c, http.StatusBadGateway, err)
	}
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, errors.New(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body: " + err.Error()
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch {
	case fe.Tag() == "required":
		return field + " is required"
	case fe.Tag() == "min" && fe.Kind() == reflect.Slice:
		return field + " is required"
	case fe.Param() != "":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s must satisfy %s", field, fe.Tag())
	}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// pathAddress parses an address path parameter, writing a 400 when malformed.
func pathAddress(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid address: %s", raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

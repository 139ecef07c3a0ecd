package server

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
	"github.com/conduit-lang/typegraph/runtime/schema"
)

// routePattern converts ":id" segments to chi's "{id}"
func routePattern(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") && len(s) > 1 {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// mountActions registers one route per action
func (h *Handler) mountActions(r chi.Router, actions []*schema.ActionHandler) {
	for _, a := range actions {
		if !a.Resolved() {
			h.logger.Warn("action has no resolver", zap.String("action", a.Action.Name))
		}
		r.Method(a.Action.Method, routePattern(a.Action.Path), h.actionHandler(a))
	}
}

func (h *Handler) actionHandler(a *schema.ActionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := actionArgs(w, r, a.Action)
		if err != nil {
			h.writeError(w, err)
			return
		}

		ctx := h.requestContext(r.Context(), r, w)
		result, invokeErr := a.Invoke(ctx, resolver.RequestFrom(ctx), args)
		if invokeErr != nil {
			svcErr := errorFor(invokeErr)
			if svcErr.Code == CodeInternal {
				h.logger.Error("action failed", zap.String("action", a.Action.Name), zap.Error(invokeErr))
			}
			h.writeError(w, svcErr)
			return
		}
		h.writeJSON(w, http.StatusOK, result)
	}
}

// actionArgs collects the action slots from the request. Scalar values read
// from the path, query string, headers and cookies are converted to the
// slot's declared kinds.
func actionArgs(w http.ResponseWriter, r *http.Request, a *metadata.Action) (resolver.Args, *Error) {
	args := resolver.Args{}

	if names := a.PathParams(); len(names) > 0 {
		params := map[string]any{}
		for _, name := range names {
			v, err := convert(a.Params.Property(name), []string{chi.URLParam(r, name)})
			if err != nil {
				return nil, errBadRequest("path parameter %s: %v", name, err)
			}
			params[name] = v
		}
		args["params"] = params
	}

	query := r.URL.Query()
	slots := []struct {
		name   string
		md     *metadata.TypeMetadata
		lookup func(string) []string
	}{
		{"query", a.Query, func(name string) []string { return query[name] }},
		{"headers", a.Headers, func(name string) []string { return r.Header.Values(name) }},
		{"cookies", a.Cookies, func(name string) []string {
			if c, err := r.Cookie(name); err == nil {
				return []string{c.Value}
			}
			return nil
		}},
	}
	for _, slot := range slots {
		if slot.md == nil {
			continue
		}
		values := map[string]any{}
		for _, p := range slot.md.Properties {
			raw := slot.lookup(p.PropertyName)
			if len(raw) == 0 {
				if !p.Optional() {
					return nil, errBadRequest("%s %s is required", strings.TrimSuffix(slot.name, "s"), p.PropertyName)
				}
				continue
			}
			v, err := convert(p, raw)
			if err != nil {
				return nil, errBadRequest("%s %s: %v", strings.TrimSuffix(slot.name, "s"), p.PropertyName, err)
			}
			values[p.PropertyName] = v
		}
		args[slot.name] = values
	}

	if a.Body != nil {
		var body any
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
		switch {
		case errors.Is(err, io.EOF):
			if !a.Body.Optional() {
				return nil, errBadRequest("request body is required")
			}
		case err != nil:
			return nil, errBadRequest("request body must be JSON")
		default:
			args["body"] = body
		}
	}
	return args, nil
}

// convert turns raw string values into the kind md declares. Undeclared
// values stay strings.
func convert(md *metadata.TypeMetadata, raw []string) (any, error) {
	if md == nil {
		return raw[0], nil
	}
	if !md.Array {
		return convertOne(md, raw[0])
	}
	list := make([]any, 0, len(raw))
	for _, s := range raw {
		v, err := convertOne(md, s)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func convertOne(md *metadata.TypeMetadata, s string) (any, error) {
	switch md.Kind {
	case metadata.KindNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.New("not a number")
		}
		return f, nil
	case metadata.KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.New("not a boolean")
		}
		return b, nil
	case metadata.KindBigInt:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, errors.New("not an integer")
		}
		return n, nil
	case metadata.KindEnum:
		if md.Property(s) == nil {
			return nil, errors.New("must be one of " + strings.Join(md.PropertyNames(), ", "))
		}
		return s, nil
	default:
		return s, nil
	}
}

package server

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/api/pagination"
	"github.com/photon-storage/bounty-hub/errs"
)

// handleFunc is a service handler of one of the shapes
//
//	func(*gin.Context) error
//	func(*gin.Context) (*RespType, error)
//	func(*gin.Context, *ReqType) error
//	func(*gin.Context, *ReqType) (*RespType, error)
//	func(*gin.Context, *ReqType, *pagination.Query) (*pagination.Result, error)
//
// The request struct is bound from the query or JSON body and
// validated by the binding tags.
type handleFunc interface{}

var (
	ginCtxType     = reflect.TypeOf((*gin.Context)(nil))
	pageQueryType  = reflect.TypeOf((*pagination.Query)(nil))
	pageResultType = reflect.TypeOf((*pagination.Result)(nil))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

func validateFunc(fn handleFunc) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return errors.New("handler is not a function")
	}

	if t.NumIn() < 1 || t.NumIn() > 3 {
		return errors.New("handler must take one to three parameters")
	}

	if t.In(0) != ginCtxType {
		return errors.New("the first parameter must be *gin.Context")
	}

	if t.NumIn() >= 2 && t.In(1).Kind() != reflect.Ptr {
		return errors.New("the request parameter must be a pointer")
	}

	if t.NumIn() == 3 && t.In(2) != pageQueryType {
		return errors.New("the third parameter must be *pagination.Query")
	}

	if t.NumOut() < 1 || t.NumOut() > 2 {
		return errors.New("handler must return one or two values")
	}

	if t.Out(t.NumOut()-1) != errorType {
		return errors.New("the last return value must be an error")
	}

	if t.NumIn() == 3 &&
		(t.NumOut() != 2 || t.Out(0) != pageResultType) {
		return errors.New("a paginated handler must return *pagination.Result")
	}

	return nil
}

type response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func (s *Server) handle(fn handleFunc) gin.HandlerFunc {
	if err := validateFunc(fn); err != nil {
		log.Fatal("invalid handler func", "error", err)
	}

	v := reflect.ValueOf(fn)
	t := v.Type()
	return func(c *gin.Context) {
		args := make([]reflect.Value, 0, t.NumIn())
		args = append(args, reflect.ValueOf(c))

		if t.NumIn() >= 2 {
			// A pagination window is parsed with its defaults applied
			// rather than bound from the raw request.
			if t.In(1) == pageQueryType {
				args = append(args, reflect.ValueOf(pagination.FromContext(c)))
			} else {
				req := reflect.New(t.In(1).Elem())
				if err := c.ShouldBind(req.Interface()); err != nil {
					_ = c.Error(errors.Wrap(errs.ErrValidation, err.Error()))
					return
				}

				args = append(args, req)
			}
		}

		if t.NumIn() == 3 {
			args = append(args, reflect.ValueOf(pagination.FromContext(c)))
		}

		rets := v.Call(args)
		if errValue := rets[len(rets)-1]; !errValue.IsNil() {
			_ = c.Error(errValue.Interface().(error))
			return
		}

		var data interface{}
		if len(rets) == 2 {
			data = rets[0].Interface()
		}

		c.JSON(http.StatusOK, &response{
			Code: http.StatusOK,
			Msg:  "success",
			Data: data,
		})
	}
}

package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/gateway-worker/internal/config"
	"github.com/shaiso/gateway-worker/internal/handler"
)

// routeView — строка вывода команды routes.
type routeView struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
	AuthUser    bool   `json:"auth_user"`
	Invoicing   int    `json:"invoicing_items"`
	Available   bool   `json:"available"`
}

// NewRoutesCmd создаёт команду, которая показывает таблицу маршрутов
// и проверяет, что для каждого handler_name есть обработчик.
func NewRoutesCmd(routerFn func() *handler.Router, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Show the routing table sent on registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			router := routerFn()

			routes, err := config.LoadRoutes(file)
			if err != nil {
				return err
			}

			views := make([]routeView, len(routes))
			rows := make([][]string, len(routes))
			for i, r := range routes {
				_, lookupErr := router.Get(r.HandlerName)
				views[i] = routeView{
					Method:      r.Method,
					Path:        r.Path,
					HandlerName: r.HandlerName,
					AuthUser:    r.AuthUser,
					Invoicing:   len(r.Invoicing),
					Available:   lookupErr == nil,
				}
				rows[i] = []string{
					strings.ToUpper(r.Method),
					r.Path,
					r.HandlerName,
					strconv.FormatBool(r.AuthUser),
					strconv.Itoa(len(r.Invoicing)),
					strconv.FormatBool(lookupErr == nil),
				}
			}

			out.Print([]string{"METHOD", "PATH", "HANDLER", "AUTH", "INVOICING", "AVAILABLE"}, rows, views)

			if err := router.Validate(routes); err != nil {
				out.Warn(err.Error())
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", routesFileDefault(), "Routes file (env SERVICE_ROUTES_FILE)")

	return cmd
}

func routesFileDefault() string {
	if v := os.Getenv("SERVICE_ROUTES_FILE"); v != "" {
		return v
	}
	return config.DefaultRoutesFile
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apiv1 "github.com/facilityhub/facility/pkg/api/v1"
	"github.com/facilityhub/facility/pkg/types"
)

const mimeJSON = "application/json"

// entityCommand builds the CRUD subcommands shared by every record kind
type entityCommand[T any] struct {
	kind    types.Kind
	headers []string
	row     func(T) []string
}

func (e *entityCommand[T]) collectionPath() string {
	return apiv1.HttpServerBaseRoute + "/" + e.kind.Plural()
}

func (e *entityCommand[T]) recordPath(id int64) string {
	return fmt.Sprintf("%s/%d", e.collectionPath(), id)
}

func (e *entityCommand[T]) command(short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(e.kind),
		Short: short,
	}

	cmd.AddCommand(
		e.listCmd(),
		e.getCmd(),
		e.createCmd(),
		e.updateCmd(),
		e.patchCmd(),
		e.deleteCmd(),
		e.searchCmd(),
		e.exportCmd(),
	)
	return cmd
}

type pageFlags struct {
	page int
	size int
	sort []string
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.page, "page", 0, "Page number (0-based)")
	cmd.Flags().IntVar(&p.size, "size", types.DefaultPageSize, "Page size")
	cmd.Flags().StringArrayVar(&p.sort, "sort", nil, "Sort order as field,asc|desc (repeatable)")
}

func (p *pageFlags) query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.page))
	q.Set("size", strconv.Itoa(p.size))
	for _, s := range p.sort {
		q.Add("sort", s)
	}
	return q
}

func (e *entityCommand[T]) listCmd() *cobra.Command {
	var (
		paging pageFlags
		eager  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", e.kind.Plural()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := paging.query()
			query.Set("eagerload", strconv.FormatBool(eager))
			return e.printPage(cmd.Context(), e.collectionPath(), query)
		},
	}

	paging.register(cmd)
	cmd.Flags().BoolVar(&eager, "eager", true, "Embed parent records")
	return cmd
}

func (e *entityCommand[T]) searchCmd() *cobra.Command {
	var paging pageFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: fmt.Sprintf("Search %s in the search mirror", e.kind.Plural()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := paging.query()
			query.Set("query", args[0])
			return e.printPage(cmd.Context(), apiv1.HttpServerBaseRoute+"/_search/"+e.kind.Plural(), query)
		},
	}

	paging.register(cmd)
	return cmd
}

// byParentCmd lists the records that reference one parent
func (e *entityCommand[T]) byParentCmd(use, short, route string) *cobra.Command {
	var paging pageFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.printPage(cmd.Context(), fmt.Sprintf("%s%s/%d", apiv1.HttpServerBaseRoute, route, parentID), paging.query())
		},
	}

	paging.register(cmd)
	return cmd
}

func (e *entityCommand[T]) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show a %s", e.kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			record, err := Get[T](cmd.Context(), getClient(), e.recordPath(id))
			if err != nil {
				return err
			}
			return e.printRecord(record)
		},
	}
}

func (e *entityCommand[T]) createCmd() *cobra.Command {
	var input payloadFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", e.kind),
		Long:  fmt.Sprintf("Create a %s from a JSON or YAML record, e.g.\n\n  facility %s create --data '%s'", e.kind, e.kind, exampleBody(e.kind)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := input.read(cmd.InOrStdin(), nil)
			if err != nil {
				return err
			}

			record, err := Send[T](cmd.Context(), getClient(), http.MethodPost, e.collectionPath(), body, mimeJSON)
			if err != nil {
				return err
			}
			return e.printMutation("Created", record)
		},
	}

	input.register(cmd)
	return cmd
}

func (e *entityCommand[T]) updateCmd() *cobra.Command {
	var input payloadFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Replace every field of a %s", e.kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			body, err := input.read(cmd.InOrStdin(), &id)
			if err != nil {
				return err
			}

			record, err := Send[T](cmd.Context(), getClient(), http.MethodPut, e.recordPath(id), body, mimeJSON)
			if err != nil {
				return err
			}
			return e.printMutation("Updated", record)
		},
	}

	input.register(cmd)
	return cmd
}

func (e *entityCommand[T]) patchCmd() *cobra.Command {
	var input payloadFlags

	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: fmt.Sprintf("Change only the given fields of a %s", e.kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			body, err := input.read(cmd.InOrStdin(), &id)
			if err != nil {
				return err
			}

			record, err := Send[T](cmd.Context(), getClient(), http.MethodPatch, e.recordPath(id), body, apiv1.MIMEMergePatchJSON)
			if err != nil {
				return err
			}
			return e.printMutation("Patched", record)
		},
	}

	input.register(cmd)
	return cmd
}

func (e *entityCommand[T]) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s", e.kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := getClient().Delete(cmd.Context(), e.recordPath(id)); err != nil {
				return err
			}

			if ok, err := PrintStructured(map[string]any{"deleted": id, "entity": e.kind}); ok {
				return err
			}
			PrintSuccessf("Deleted %s %d", e.kind, id)
			return nil
		},
	}
}

func (e *entityCommand[T]) printPage(ctx context.Context, path string, query url.Values) error {
	records, info, err := List[T](ctx, getClient(), path, query)
	if err != nil {
		return err
	}

	if ok, err := PrintStructured(records); ok {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(fmt.Sprintf("No %s found.", e.kind.Plural())))
		return nil
	}

	table := NewTable(e.headers...)
	for _, r := range records {
		table.AddRow(e.row(r)...)
	}
	table.Print()
	fmt.Fprintf(stdout, "\n  %s\n", DimStyle.Render(fmt.Sprintf("%d of %d %s", len(records), info.Total, e.kind.Plural())))
	return nil
}

func (e *entityCommand[T]) printRecord(record T) error {
	if ok, err := PrintStructured(record); ok {
		return err
	}

	table := NewTable(e.headers...)
	table.AddRow(e.row(record)...)
	table.Print()
	return nil
}

func (e *entityCommand[T]) printMutation(verb string, record T) error {
	if ok, err := PrintStructured(record); ok {
		return err
	}

	PrintSuccessf("%s %s", verb, e.kind)
	PrintNewline()
	return e.printRecord(record)
}

type payloadFlags struct {
	data string
	file string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.data, "data", "d", "", "Record as JSON or YAML")
	cmd.Flags().StringVarP(&p.file, "file", "f", "", "Read the record from a JSON or YAML file (- for stdin)")
}

// read loads the payload and returns it as JSON. When id is set and the
// payload carries no id, the id is filled in so the path and body agree.
func (p *payloadFlags) read(stdin io.Reader, id *int64) ([]byte, error) {
	var (
		raw []byte
		err error
	)

	switch {
	case p.data != "" && p.file != "":
		return nil, errors.New("use either --data or --file, not both")
	case p.data != "":
		raw = []byte(p.data)
	case p.file == "-":
		raw, err = io.ReadAll(stdin)
	case p.file != "":
		raw, err = os.ReadFile(p.file)
	default:
		return nil, errors.New("a record is required: pass --data or --file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	return toJSONObject(raw, id)
}

func toJSONObject(raw []byte, id *int64) ([]byte, error) {
	// JSON is a subset of YAML, so one decoder handles both
	var payload map[string]any
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("record is not valid JSON or YAML: %w", err)
	}
	if payload == nil {
		return nil, errors.New("record must be an object")
	}

	if _, ok := payload["id"]; !ok && id != nil {
		payload["id"] = *id
	}

	return json.Marshal(payload)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func exampleBody(kind types.Kind) string {
	switch kind {
	case types.KindRoom:
		return `{"room_number":101,"facility":{"id":1}}`
	case types.KindResident:
		return `{"name":"Ada","phone_number":5551234,"room":{"id":1}}`
	}
	return `{"name":"Sunrise"}`
}

func facilityCmd() *cobra.Command {
	e := &entityCommand[*types.Facility]{
		kind:    types.KindFacility,
		headers: []string{"ID", "NAME"},
		row: func(f *types.Facility) []string {
			return []string{deref(f.ID), deref(f.Name)}
		},
	}
	return e.command("Manage facilities")
}

func roomCmd() *cobra.Command {
	e := &entityCommand[*types.Room]{
		kind:    types.KindRoom,
		headers: []string{"ID", "ROOM", "FACILITY"},
		row: func(r *types.Room) []string {
			return []string{deref(r.ID), deref(r.RoomNumber), facilityLabel(r.Facility)}
		},
	}

	cmd := e.command("Manage rooms")
	cmd.AddCommand(e.byParentCmd("by-facility <facility_id>", "List the rooms of a facility", "/facility/rooms"))
	return cmd
}

func residentCmd() *cobra.Command {
	e := &entityCommand[*types.Resident]{
		kind:    types.KindResident,
		headers: []string{"ID", "NAME", "PHONE", "EMAIL", "ROOM"},
		row: func(r *types.Resident) []string {
			return []string{deref(r.ID), Truncate(deref(r.Name), 40), deref(r.PhoneNumber), deref(r.Email), roomLabel(r.Room)}
		},
	}

	cmd := e.command("Manage residents")
	cmd.AddCommand(e.byParentCmd("by-room <room_id>", "List the residents of a room", "/room/residents"))
	return cmd
}

func facilityLabel(f *types.Facility) string {
	if f == nil {
		return "-"
	}
	if f.ID == nil || f.Name == nil {
		return deref(f.ID)
	}
	return fmt.Sprintf("%d (%s)", *f.ID, *f.Name)
}

func roomLabel(r *types.Room) string {
	if r == nil {
		return "-"
	}
	if r.ID == nil || r.RoomNumber == nil {
		return deref(r.ID)
	}
	return fmt.Sprintf("%d (#%d)", *r.ID, *r.RoomNumber)
}

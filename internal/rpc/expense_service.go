package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
const ExpenseServiceName = "splitledger.v1.ExpenseService"

// Procedure names of ExpenseService RPCs.
const (
	ExpenseServiceCreateExpenseProcedure            = "/splitledger.v1.ExpenseService/CreateExpense"
	ExpenseServiceGetExpenseProcedure               = "/splitledger.v1.ExpenseService/GetExpense"
	ExpenseServiceListExpensesProcedure             = "/splitledger.v1.ExpenseService/ListExpenses"
	ExpenseServiceSetVerificationStatusProcedure    = "/splitledger.v1.ExpenseService/SetVerificationStatus"
	ExpenseServiceListPendingVerificationsProcedure = "/splitledger.v1.ExpenseService/ListPendingVerifications"
)

// ExpenseServiceHandler is implemented by the expense service.
type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	SetVerificationStatus(context.Context, *connect.Request[SetVerificationStatusRequest]) (*connect.Response[SetVerificationStatusResponse], error)
	ListPendingVerifications(context.Context, *connect.Request[ListPendingVerificationsRequest]) (*connect.Response[ListPendingVerificationsResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(handlerCodecs(), opts...)
	createExpense := connect.NewUnaryHandler(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts...)
	getExpense := connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...)
	listExpenses := connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...)
	setVerificationStatus := connect.NewUnaryHandler(ExpenseServiceSetVerificationStatusProcedure, svc.SetVerificationStatus, opts...)
	listPendingVerifications := connect.NewUnaryHandler(ExpenseServiceListPendingVerificationsProcedure, svc.ListPendingVerifications, opts...)

	return "/" + ExpenseServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ExpenseServiceCreateExpenseProcedure:
			createExpense.ServeHTTP(w, r)
		case ExpenseServiceGetExpenseProcedure:
			getExpense.ServeHTTP(w, r)
		case ExpenseServiceListExpensesProcedure:
			listExpenses.ServeHTTP(w, r)
		case ExpenseServiceSetVerificationStatusProcedure:
			setVerificationStatus.ServeHTTP(w, r)
		case ExpenseServiceListPendingVerificationsProcedure:
			listPendingVerifications.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ExpenseServiceClient is a client for the ExpenseService service.
type ExpenseServiceClient interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	SetVerificationStatus(context.Context, *connect.Request[SetVerificationStatusRequest]) (*connect.Response[SetVerificationStatusResponse], error)
	ListPendingVerifications(context.Context, *connect.Request[ListPendingVerificationsRequest]) (*connect.Response[ListPendingVerificationsResponse], error)
}

type expenseServiceClient struct {
	createExpense            *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	getExpense               *connect.Client[GetExpenseRequest, GetExpenseResponse]
	listExpenses             *connect.Client[ListExpensesRequest, ListExpensesResponse]
	setVerificationStatus    *connect.Client[SetVerificationStatusRequest, SetVerificationStatusResponse]
	listPendingVerifications *connect.Client[ListPendingVerificationsRequest, ListPendingVerificationsResponse]
}

// NewExpenseServiceClient constructs a client for the ExpenseService service.
// baseURL is the server root, e.g. http://localhost:8080.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ExpenseServiceClient {
	opts = append([]connect.ClientOption{clientCodec()}, opts...)
	return &expenseServiceClient{
		createExpense:            connect.NewClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL+ExpenseServiceCreateExpenseProcedure, opts...),
		getExpense:               connect.NewClient[GetExpenseRequest, GetExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		listExpenses:             connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		setVerificationStatus:    connect.NewClient[SetVerificationStatusRequest, SetVerificationStatusResponse](httpClient, baseURL+ExpenseServiceSetVerificationStatusProcedure, opts...),
		listPendingVerifications: connect.NewClient[ListPendingVerificationsRequest, ListPendingVerificationsResponse](httpClient, baseURL+ExpenseServiceListPendingVerificationsProcedure, opts...),
	}
}

func (c *expenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[GetExpenseRequest]) (*connect.Response[GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *expenseServiceClient) SetVerificationStatus(ctx context.Context, req *connect.Request[SetVerificationStatusRequest]) (*connect.Response[SetVerificationStatusResponse], error) {
	return c.setVerificationStatus.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListPendingVerifications(ctx context.Context, req *connect.Request[ListPendingVerificationsRequest]) (*connect.Response[ListPendingVerificationsResponse], error) {
	return c.listPendingVerifications.CallUnary(ctx, req)
}

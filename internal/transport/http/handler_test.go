package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"linkage/internal/reconcile"
	"linkage/internal/transport/http/mocks"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
	"linkage/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	store   *mocks.MockPinger
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.store = mocks.NewMockPinger(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(s.service, s.store, logger)
	s.router = chi.NewRouter()
	handler.Register(s.router)
}

func strPtr(v string) *string { return &v }

func consolidated() reconcile.ConsolidatedContact {
	return reconcile.ConsolidatedContact{
		PrimaryContactID:    1,
		Emails:              []string{"doc@hv.edu"},
		PhoneNumbers:        []string{"555-0100"},
		SecondaryContactIDs: []int64{},
	}
}

func (s *HandlerSuite) TestIdentifyHappyPath() {
	s.service.EXPECT().
		Reconcile(gomock.Any(), strPtr("doc@hv.edu"), strPtr("555-0100")).
		Return(consolidated(), nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
		"email":       "doc@hv.edu",
		"phoneNumber": "555-0100",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[IdentifyResponse](s.T(), rr)
	s.Equal(int64(1), resp.Contact.PrimaryContactID)
	s.Equal([]string{"doc@hv.edu"}, resp.Contact.Emails)
}

func (s *HandlerSuite) TestIdentifyLowercasesAndTrimsEmail() {
	s.service.EXPECT().
		Reconcile(gomock.Any(), strPtr("doc@hv.edu"), gomock.Nil()).
		Return(consolidated(), nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
		"email": "  Doc@HV.edu ",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestIdentifyStringifiesNumericPhone() {
	s.service.EXPECT().
		Reconcile(gomock.Any(), gomock.Nil(), strPtr("919191")).
		Return(consolidated(), nil)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", `{"phoneNumber": 919191}`)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestIdentifyRejectsEmptyBody() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", "")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestIdentifyRejectsBothFieldsNull() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", `{"email": null, "phoneNumber": null}`)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]string](s.T(), rr)
	s.Equal(string(dErrors.CodeBadRequest), (*resp)["error"])
}

func (s *HandlerSuite) TestIdentifyRejectsMalformedEmail() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
		"email": "not-an-email",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestIdentifyRejectsPhoneWithDisallowedCharacters() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
		"phoneNumber": "555-O1OO!",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestIdentifyTranslatesServiceErrors() {
	s.service.EXPECT().
		Reconcile(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(reconcile.ConsolidatedContact{}, dErrors.Wrap(sentinel.ErrSerialization, dErrors.CodeSerialization, "reconciliation conflicted twice"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", map[string]any{
		"email": "doc@hv.edu",
	})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusConflict, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]string](s.T(), rr)
	s.Equal(string(dErrors.CodeSerialization), (*resp)["error"])
}

func (s *HandlerSuite) TestHealthOK() {
	s.store.EXPECT().Ping(gomock.Any()).Return(nil)

	req := testutil.NewRequestWithBody(s.T(), http.MethodGet, "/health", "")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestHealthUnavailable() {
	s.store.EXPECT().Ping(gomock.Any()).Return(sentinel.ErrUnavailable)

	req := testutil.NewRequestWithBody(s.T(), http.MethodGet, "/health", "")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

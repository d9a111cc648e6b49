package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/hutechbot/backend/internal/errors"
)

func TestClientLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login", func(t *testing.T) {
		var gotBody map[string]string
		var gotAppKey, gotUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, loginPath, r.URL.Path)
			gotAppKey = r.Header.Get("app-key")
			gotUserAgent = r.Header.Get("user-agent")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("content-type", "application/json")
			_, _ = w.Write([]byte(`{
				"token": "fresh-jwt",
				"data": {"ho_ten": "Nguyễn Văn A"},
				"old_login_info": {"token": "legacy-jwt", "result": {"Ho_Ten": "Nguyễn Văn A"}}
			}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		result, err := client.Login(ctx, "sv001", "secret", "device-1")
		require.NoError(t, err)
		require.Equal(t, "fresh-jwt", result.Token)
		require.Equal(t, "legacy-jwt", result.LegacyToken)
		require.Equal(t, "Nguyễn Văn A", result.DisplayName)

		require.Equal(t, "SINHVIEN_DAIHOC", gotAppKey)
		require.Equal(t, "Dart/3.8 (dart:io)", gotUserAgent)
		require.Equal(t, map[string]string{
			"diuu":     "device-1",
			"username": "sv001",
			"password": "secret",
		}, gotBody)
	})

	t.Run("response without token means rejected credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": {}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		_, err := client.Login(ctx, "sv001", "wrong", "device-1")
		require.ErrorIs(t, err, apperrors.ErrAuth)
	})

	t.Run("401 is an auth error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		_, err := client.Login(ctx, "sv001", "wrong", "device-1")
		require.ErrorIs(t, err, apperrors.ErrAuth)
	})

	t.Run("5xx is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		_, err := client.Login(ctx, "sv001", "secret", "device-1")
		require.ErrorIs(t, err, apperrors.ErrTransient)
	})

	t.Run("unreachable portal is transient", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", time.Second)
		_, err := client.Login(ctx, "sv001", "secret", "device-1")
		require.ErrorIs(t, err, apperrors.ErrTransient)
	})
}

func TestClientTimetable(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts the 201 the endpoint answers with", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, timetablePath, r.URL.Path)
			require.Equal(t, "MOBILE_HUTECH", r.Header.Get("app-key"))
			require.Equal(t, "JWT legacy-jwt", r.Header.Get("authorization"))

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`[
				{"ma_hp": "MATH101", "ten_hp": "Giải tích 1", "chi_tiet_tkb": [
					{"ngay_hoc": "01/09/2025", "thu": 2, "tiet_bd": 1, "so_tiet": 3, "phong_hoc": "B-05.01"}
				]}
			]`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		subjects, err := client.Timetable(ctx, "legacy-jwt")
		require.NoError(t, err)
		require.Len(t, subjects, 1)
		require.Equal(t, "MATH101", subjects[0].Code)
		require.Len(t, subjects[0].Occurrences, 1)
		require.Equal(t, 1, subjects[0].Occurrences[0].StartPeriod)
		require.NotNil(t, subjects[0].Occurrences[0].Weekday)
		require.Equal(t, 2, *subjects[0].Occurrences[0].Weekday)
	})
}

func TestClientSubmitCheckin(t *testing.T) {
	ctx := context.Background()
	location := Campuses["Sai Gon Campus"]

	t.Run("successful check-in", func(t *testing.T) {
		var gotBody map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, checkinPath, r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte(`{"message": "Điểm danh thành công"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		result, err := client.SubmitCheckin(ctx, "legacy-jwt", "QR123", "device-1", location)
		require.NoError(t, err)
		require.Equal(t, "Điểm danh thành công", result.Message)

		require.Equal(t, "QR123", gotBody["code"])
		require.Equal(t, "DIEM_DANH", gotBody["qr_key"])
		require.Equal(t, "device-1", gotBody["device_id"])
		loc, ok := gotBody["location"].(map[string]interface{})
		require.True(t, ok)
		require.InDelta(t, location.Lat, loc["lat"], 1e-9)
	})

	t.Run("empty success body gets the default message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		result, err := client.SubmitCheckin(ctx, "legacy-jwt", "QR123", "device-1", location)
		require.NoError(t, err)
		require.Equal(t, "Điểm danh thành công", result.Message)
	})

	t.Run("portal rejection keeps the portal message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"statusCode": 400, "reasons": {"message": "Mã QR đã hết hạn"}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		_, err := client.SubmitCheckin(ctx, "legacy-jwt", "EXPIRED", "device-1", location)
		require.ErrorIs(t, err, apperrors.ErrValidation)
		require.Contains(t, err.Error(), "Mã QR đã hết hạn")
	})
}

func TestClientSearchCourses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, courseSearchPath, r.URL.Path)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []string{"2024-2025-1"}, body["nam_hoc_hoc_ky"])

		_, _ = w.Write([]byte(`[{"key_lop_hoc_phan": "k1", "ma_hp": "MATH101", "ten_hp": "Giải tích 1"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	courses, err := client.SearchCourses(context.Background(), "legacy-jwt", []string{"2024-2025-1"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "k1", courses[0].Key)
}
